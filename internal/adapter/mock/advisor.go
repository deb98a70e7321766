package mock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nutribot/internal/domain"
)

// Advisor returns canned advice, handy when no advice service is running.
type Advisor struct {
	delay time.Duration
}

func NewAdvisor(delay time.Duration) *Advisor {
	return &Advisor{delay: delay}
}

var cannedAdvice = []struct {
	keyword string
	advice  string
}{
	{"breakfast", "Try Greek yogurt with berries and a handful of oats, or two eggs on whole-grain toast. Both give you 20g+ of protein."},
	{"calorie", "A rough estimate is your body weight in kg × 30 kcal. Adjust by 300-500 kcal up or down depending on your goal."},
	{"weight", "Aim for a modest deficit, keep protein high, fill half your plate with vegetables and keep moving every day."},
	{"meal", "Lunch: quinoa bowl with chickpeas, roasted vegetables and tahini. Dinner: grilled fish, brown rice and a green salad."},
}

func (a *Advisor) Advise(ctx context.Context, query string) (string, error) {
	if a.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(a.delay):
		}
	}

	q := strings.ToLower(query)
	for _, c := range cannedAdvice {
		if strings.Contains(q, c.keyword) {
			return c.advice, nil
		}
	}
	return fmt.Sprintf("You asked: %q. Eat more fiber, drink water and keep portions balanced.", strings.TrimSpace(query)), nil
}

var _ domain.Advisor = (*Advisor)(nil)
