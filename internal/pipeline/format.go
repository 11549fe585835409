package pipeline

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/DarthPollos/CV-Compare-Project/internal/candidates"
)

var (
	headerColor  = color.New(color.FgGreen, color.Bold)
	idColor      = color.New(color.FgCyan, color.Bold)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// Format writes the user facing text of an outcome. Raw LLM errors are never shown.
func Format(w io.Writer, o *Outcome) error {
	switch o.State {
	case StateRetrieveFailed:
		_, err := errorColor.Fprintln(w, o.Message)
		return err
	case StateRetrieveEmpty:
		_, err := warningColor.Fprintln(w, o.Message)
		return err
	case StateDone:
	default:
		_, err := fmt.Fprintf(w, "query stopped in state %s\n", o.State)
		return err
	}

	var b strings.Builder
	if o.Reranked {
		headerColor.Fprintln(&b, "=== Final ranking refined by the LLM ===")
	} else {
		headerColor.Fprintln(&b, "=== Ranking by similarity ===")
		if o.RerankError != "" {
			warningColor.Fprintln(&b, "LLM ranking unavailable, showing similarity order.")
		}
	}
	fmt.Fprintf(&b, "(Processing time: %.2fs)\n\n", o.Elapsed.Seconds())

	for _, c := range o.Candidates {
		writeCandidate(&b, c, o.Reranked)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeCandidate(b *strings.Builder, c candidates.Ranked, reranked bool) {
	idColor.Fprintf(b, "#%d CV ID: %s", c.Position, c.Record.ID)
	fmt.Fprintf(b, " | Name: %s\n", c.Record.DisplayName())

	if reranked {
		if c.Score != nil {
			fmt.Fprintf(b, "Score: %.2f\n", *c.Score)
		}
		justification := c.Justification
		if justification == "" {
			justification = "No justification provided."
		}
		fmt.Fprintf(b, "Justification:\n%s\n\n", justification)
		return
	}

	fmt.Fprintf(b, "Distance: %.2f | Similarity: %.2f\n", c.Distance, 1-c.Distance)
	fmt.Fprintf(b, "Skills: %s\n", candidates.OrMissing(c.Record.Skills))
	fmt.Fprintf(b, "Languages: %s\n", candidates.OrMissing(c.Record.Languages))
	fmt.Fprintf(b, "Description: %s\n\n", candidates.Description(c.Record))
}
