package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shaiso/dwloader/internal/orchestrator"
)

// PromptConfirmer спрашивает оператора, продолжать ли запуск при проблемах проверки.
// Любой ответ, кроме y/yes, а также конец ввода означают отказ.
type PromptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptConfirmer создаёт PromptConfirmer.
func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{in: bufio.NewReader(in), out: out}
}

// Confirm выводит проблемы и ждёт ответа.
func (p *PromptConfirmer) Confirm(_ context.Context, report *orchestrator.Report) (bool, error) {
	fmt.Fprintln(p.out, "Prerequisite check found issues:")
	for _, issue := range report.Issues {
		fmt.Fprintln(p.out, "  - "+issue)
	}
	return p.Ask("Continue anyway?")
}

// Ask задаёт вопрос с ответом y/N.
func (p *PromptConfirmer) Ask(question string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)

	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read answer: %w", err)
	}
	if err == io.EOF && line == "" {
		fmt.Fprintln(p.out)
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
