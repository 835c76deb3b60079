// Package textfmt turns the markdown the explanation service emits into
// plain terminal text.
package textfmt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Plain renders md without markup: emphasis is dropped, list items get a
// bullet or their number, table cells are joined with " | " one row per line,
// and block elements are separated by a blank line.
func Plain(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := markdown.Parse([]byte(md), p)

	var out strings.Builder
	ensureNewline := func() {
		s := out.String()
		if s != "" && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
	}
	ensureSpace := func() {
		s := out.String()
		if s != "" && !strings.HasSuffix(s, " ") && !strings.HasSuffix(s, "\n") {
			out.WriteByte(' ')
		}
	}
	ordinals := map[ast.Node]int{}

	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Text:
			if entering {
				out.WriteString(strings.ReplaceAll(string(n.Literal), "\n", " "))
			}
		case *ast.Code:
			if entering {
				out.Write(n.Literal)
			}
		case *ast.CodeBlock:
			if entering {
				ensureNewline()
				out.WriteString(strings.TrimRight(string(n.Literal), "\n"))
				out.WriteString("\n\n")
			}
		case *ast.Softbreak:
			if entering {
				out.WriteByte(' ')
			}
		case *ast.Hardbreak:
			if entering {
				out.WriteByte('\n')
			}
		case *ast.ListItem:
			if entering {
				ensureNewline()
				list := n.GetParent()
				if n.ListFlags&ast.ListTypeOrdered != 0 {
					ordinals[list]++
					fmt.Fprintf(&out, "%d. ", ordinals[list])
				} else {
					out.WriteString("• ")
				}
			} else {
				ensureNewline()
			}
		case *ast.List:
			if !entering {
				ensureNewline()
				out.WriteByte('\n')
			}
		case *ast.Paragraph:
			if !entering {
				if _, inItem := n.GetParent().(*ast.ListItem); inItem {
					ensureNewline()
				} else {
					out.WriteString("\n\n")
				}
			}
		case *ast.Heading:
			if !entering {
				out.WriteString("\n\n")
			}
		case *ast.Image:
			if entering {
				ensureSpace()
			}
		case *ast.Table:
			if entering {
				ensureNewline()
			} else {
				out.WriteString("\n")
			}
		case *ast.TableRow:
			if !entering {
				out.WriteByte('\n')
			}
		case *ast.TableCell:
			if entering && !firstChild(n) {
				out.WriteString(" | ")
			}
		case *ast.HorizontalRule:
			if entering {
				ensureNewline()
				out.WriteString("\n")
			}
		}
		return ast.GoToNext
	})

	lines := strings.Split(out.String(), "\n")
	for idx, line := range lines {
		lines[idx] = strings.TrimRight(line, " \t")
	}
	text := blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(text)
}

func firstChild(node ast.Node) bool {
	parent := node.GetParent()
	if parent == nil {
		return true
	}
	children := parent.GetChildren()
	return len(children) == 0 || children[0] == node
}
