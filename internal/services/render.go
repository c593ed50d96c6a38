package services

import (
	"fmt"
	"strings"

	"github.com/markdave123-py/supplement-advisor/internal/models"
)

const (
	HelpText = "Available commands:\n\n" +
		"/start - start the survey over\n" +
		"/reset - reset the current survey\n" +
		"/help - show this help\n\n" +
		"If something looks stuck, try /reset."

	CompletedHintText = "The survey is already finished. Use /start to take it again or /help for help."

	ErrorText = "Something went wrong. Please try again later or start over with /start."

	doctorNote = "These suggestions are not medical advice. Please consult your doctor before taking any supplement."
)

// Render turns a survey event into message text and reply keyboard options.
func Render(ev *models.Event) (string, []string) {
	if ev == nil {
		return ErrorText, nil
	}
	switch ev.Kind {
	case models.EventTopicPrompt:
		var b strings.Builder
		if ev.Greeting != "" {
			fmt.Fprintf(&b, "Hi, %s!\n\n", ev.Greeting)
		}
		b.WriteString(ev.Text)
		b.WriteString(":")
		return b.String(), ev.Options
	case models.EventQuestion:
		var b strings.Builder
		if ev.Progress != nil {
			fmt.Fprintf(&b, "Question %d of %d:\n\n", ev.Progress.Current, ev.Progress.Total)
		}
		b.WriteString(ev.Text)
		return b.String(), ev.Options
	case models.EventCompleted:
		return renderCompleted(ev), nil
	default:
		return ErrorText, nil
	}
}

func renderCompleted(ev *models.Event) string {
	var b strings.Builder
	b.WriteString("Survey complete! Thank you for your answers.\n\n")

	if len(ev.Main) == 0 && len(ev.Additional) == 0 {
		b.WriteString("We could not find a supplement that matches your answers.\n\n")
	} else {
		if len(ev.Main) > 0 {
			b.WriteString("Recommended for you:\n")
			writeProducts(&b, ev.Main)
		}
		if len(ev.Additional) > 0 {
			b.WriteString("\nYou may also consider:\n")
			writeProducts(&b, ev.Additional)
		}
		b.WriteString("\n")
	}
	b.WriteString(doctorNote)
	b.WriteString("\n\nUse /start to take the survey again.")
	return b.String()
}

func writeProducts(b *strings.Builder, items []models.ScoredProduct) {
	for i, sp := range items {
		fmt.Fprintf(b, "%d. %s", i+1, sp.Product.Name)
		if sp.Product.Price != "" {
			fmt.Fprintf(b, " (%s)", sp.Product.Price)
		}
		b.WriteString("\n")
		if sp.Product.Description != "" {
			fmt.Fprintf(b, "   %s\n", sp.Product.Description)
		}
		if sp.Product.ProductURL != "" {
			fmt.Fprintf(b, "   %s\n", sp.Product.ProductURL)
		}
	}
}
