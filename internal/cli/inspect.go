package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/astkg/pkg/kg"
	"github.com/matzehuels/astkg/pkg/render/dot"
)

// inspectCommand creates the inspect command.
func (c *CLI) inspectCommand() *cobra.Command {
	var (
		flags codecFlags
		id    string
	)

	cmd := &cobra.Command{
		Use:   "inspect [file.py|graph.json]",
		Short: "Browse a knowledge graph interactively",
		Long: `Browse a knowledge graph in the terminal, starting at the module root.

Keys: ↑/↓ move, enter follows an edge, backspace goes back, q quits.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			if err := validateInput(input, id); err != nil {
				return err
			}
			r, err := c.newRunner(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			g, _, err := c.graphFor(ctx, r, input, id, c.options(flags))
			if err != nil {
				return err
			}
			_, err = tea.NewProgram(NewNodeBrowserModel(g), tea.WithContext(ctx)).Run()
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&id, "id", "", "inspect the stored graph with this id")
	_ = cmd.RegisterFlagCompletionFunc("id", c.completeGraphIDs)
	return cmd
}

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// NodeBrowserModel - Interactive graph navigation
// =============================================================================

// NodeBrowserModel is the bubbletea model for walking a graph edge by edge.
type NodeBrowserModel struct {
	Index   *kg.Index
	Current string
	Cursor  int
	Height  int
	Offset  int

	// trail holds the nodes and cursor positions above Current.
	trail []crumb
}

type crumb struct {
	id     string
	cursor int
}

// NewNodeBrowserModel creates a browser positioned at the module root.
func NewNodeBrowserModel(g *kg.Graph) NodeBrowserModel {
	return NodeBrowserModel{
		Index:   kg.NewIndex(g),
		Current: kg.RootID,
		Height:  15,
	}
}

func (m NodeBrowserModel) Init() tea.Cmd {
	return nil
}

func (m NodeBrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	edges := m.Index.Out(m.Current)
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(edges)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter", "right", "l":
			if len(edges) == 0 {
				return m, nil
			}
			m.trail = append(m.trail, crumb{id: m.Current, cursor: m.Cursor})
			m.Current = edges[m.Cursor].Dst
			m.Cursor, m.Offset = 0, 0
		case "backspace", "left", "h":
			if len(m.trail) == 0 {
				return m, nil
			}
			last := m.trail[len(m.trail)-1]
			m.trail = m.trail[:len(m.trail)-1]
			m.Current, m.Cursor = last.id, last.cursor
			m.Offset = max(0, m.Cursor-m.Height+1)
		}
	case tea.WindowSizeMsg:
		m.Height = max(5, msg.Height-12)
	}
	return m, nil
}

func (m NodeBrowserModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.breadcrumb()))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ follow  ⌫ back  q quit"))
	b.WriteString("\n\n")

	n, err := m.Index.Node(m.Current)
	if err != nil {
		b.WriteString(StyleWarning.Render(err.Error()))
		return b.String()
	}
	b.WriteString(listSelectedStyle.Render(string(n.Kind)))
	if h := dot.Headline(n); h != "" {
		b.WriteString(" " + listNormalStyle.Render(h))
	}
	b.WriteString("\n")
	for _, k := range slices.Sorted(maps.Keys(n.Attrs)) {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  %s = %v", k, n.Attrs[k])))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	edges := m.Index.Out(m.Current)
	if len(edges) == 0 {
		b.WriteString(listDimStyle.Render("  (leaf)"))
		return b.String()
	}

	end := min(m.Offset+m.Height, len(edges))
	rows := make([][]string, 0, end-m.Offset)
	for i := m.Offset; i < end; i++ {
		e := edges[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		kind, head := "?", ""
		if dst, ok := m.Index.Graph().Node(e.Dst); ok {
			kind, head = string(dst.Kind), dot.Headline(dst)
		}
		rows = append(rows, []string{cursor, e.Rel, kind, head, e.Dst})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Relation", "Kind", "Value", "Node").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if m.Offset+row == m.Cursor {
				return lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
			}
			if col == 4 {
				return listDimStyle
			}
			return listNormalStyle
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(edges))))

	return b.String()
}

// breadcrumb joins the relations followed from the root, eliding the
// middle of deep paths.
func (m NodeBrowserModel) breadcrumb() string {
	parts := []string{"module"}
	for _, c := range m.trail {
		if edges := m.Index.Out(c.id); c.cursor < len(edges) {
			parts = append(parts, edges[c.cursor].Rel)
		}
	}
	if len(parts) > 8 {
		parts = append([]string{parts[0], "…"}, parts[len(parts)-6:]...)
	}
	return strings.Join(parts, " "+iconArrow+" ")
}
