// Package coach builds per-purchase coaching prompts and asks an LLM for advice.
package coach

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dvloznov/persona-coach/internal/llm"
	"github.com/dvloznov/persona-coach/internal/persona"
)

// Response sizes per prompt kind.
const (
	impulseMaxTokens = 400
	tightMaxTokens   = 150
	defaultMaxTokens = 100

	// tightBudgetShare is the budget share (percent) above which a
	// non-impulse purchase earns a gentle warning.
	tightBudgetShare = 85.0

	temperature = 0.7
	topP        = 1.0
)

// AdviceRequest describes one purchase to comment on.
type AdviceRequest struct {
	Persona             string  `json:"persona" validate:"required"`
	Amount              float64 `json:"amount" validate:"gte=0"`
	UserGoal            string  `json:"user_goal" validate:"required"`
	TransactionCategory string  `json:"transaction_category" validate:"required"`
	MonthlyBudget       float64 `json:"monthly_budget"`
	// CurrentMonthlySpend is what was spent before this purchase.
	CurrentMonthlySpend float64 `json:"current_monthly_spend" validate:"gte=0"`
}

// IsImpulse reports whether the purchase is in the Impulse category.
func (r AdviceRequest) IsImpulse() bool {
	return r.TransactionCategory == string(persona.CategoryImpulse)
}

// BudgetShare returns the percentage of the monthly budget spent once this
// purchase is included. Without a positive budget it is 100 for impulse
// purchases and 0 otherwise.
func BudgetShare(r AdviceRequest) float64 {
	if r.MonthlyBudget > 0 {
		return (r.CurrentMonthlySpend + r.Amount) / r.MonthlyBudget * 100
	}
	if r.IsImpulse() {
		return 100
	}
	return 0
}

// BuildPrompt picks the system prompt, user prompt and response budget for r.
func BuildPrompt(r AdviceRequest) llm.Request {
	share := BudgetShare(r)
	req := llm.Request{
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   defaultMaxTokens,
	}

	if r.IsImpulse() {
		req.System = fmt.Sprintf("You are an AI Financial Coach, a financial bot. Your tone is slightly urgent when user's transactions are impulsive but always encouraging and non-judgmental. The user's financial persona is '%s'.", r.Persona)
		req.Prompt = fmt.Sprintf(`
I just made an impulsive purchase of ₹%[1]s.
My financial context:
- My main goal is '%[2]s'.
- My monthly budget is ₹%[3]s.
- After this purchase, I have now spent %[4]s%% of my total budget for the month.

Please provide detailed, actionable advice in Markdown format (around 150-200 words). The advice must include:
1.  An empathetic opening that acknowledges the purchase AND its impact on my budget.
2.  A section called "**Future Strategies**" with 2 concrete methods to avoid similar impulse buys.
3.  A section called "**Productive Channeling**" with 2 creative ideas on how I could have used that ₹%[1]s to better align with my '%[5]s' personality and accelerate my goal of '%[2]s'.
`, money(r.Amount), r.UserGoal, money(r.MonthlyBudget), percent(share), r.Persona)
		req.MaxTokens = impulseMaxTokens
		return req
	}

	req.System = fmt.Sprintf("You are 'AI Financial Coach', a positive and gentle financial bot. The user's financial persona is '%s'.", r.Persona)

	if share > tightBudgetShare {
		req.Prompt = fmt.Sprintf(`
I just made an essential purchase of ₹%[1]s categorized as '%[2]s'.
My financial context:
- My budget is ₹%[3]s.
- I have now spent %[4]s%% of my budget.
- My main goal is '%[5]s'.

Please give me a message (under 100 words) that does two things:
1. Praises my smart spending on this necessary item.
2. Gently points out that my budget is tight and I should be mindful with my remaining funds to still reach my goal of '%[5]s'.
`, money(r.Amount), r.TransactionCategory, money(r.MonthlyBudget), percent(share), r.UserGoal)
		req.MaxTokens = tightMaxTokens
		return req
	}

	req.Prompt = fmt.Sprintf("I just made a responsible purchase of ₹%s categorized as '%s'. Please give me a short, positive reinforcement message (under 100 words) to praise my smart spending.", money(r.Amount), r.TransactionCategory)
	return req
}

// money renders an amount the way users typed it: whole numbers keep one
// decimal place ("500.0"), fractional ones are printed in shortest form.
func money(v float64) string {
	if v == math.Trunc(v) && !math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// percent rounds half to even, matching %.0f.
func percent(v float64) string {
	return fmt.Sprintf("%.0f", v)
}
