package interp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/fxpl/gitmem/graph"
)

// Graph output formats.
const (
	FormatDot     = "dot"
	FormatMermaid = "mermaid"
)

// GraphOutput names the file and format execution graphs are written to.
type GraphOutput struct {
	Path   string
	Format string
}

// Write serialises the current execution graph.
func (o GraphOutput) Write(g *GlobalContext) error {
	var rendered string
	if o.Format == FormatMermaid {
		rendered = graph.Mermaid(g.Root())
	} else {
		rendered = graph.Dot(g.Root())
	}
	if err := os.WriteFile(o.Path, []byte(rendered), 0644); err != nil {
		return errors.Wrap(err, "writing execution graph")
	}
	return nil
}

// WithIndex derives the output for one of several terminal states by
// inserting a zero-padded index before the file extension.
func (o GraphOutput) WithIndex(idx int) GraphOutput {
	ext := filepath.Ext(o.Path)
	stem := strings.TrimSuffix(o.Path, ext)
	return GraphOutput{Path: fmt.Sprintf("%s_%03d%s", stem, idx, ext), Format: o.Format}
}
