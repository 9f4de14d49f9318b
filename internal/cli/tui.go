package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/viewgraph/pkg/viewgraph"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// =============================================================================
// inspect command
// =============================================================================

// inspectCommand creates the inspect command for browsing a layout response.
func (c *CLI) inspectCommand() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "inspect [layout.json]",
		Short: "Browse the positions of a layout response",
		Long: `Browse the positions of a layout response.

Opens an interactive list of every input, output and node with its x/y
position. Tab cycles the category filter. With --plain the positions are
printed as a table instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInspect(cmd.Context(), args[0], plain)
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "print a table instead of the interactive view")

	return cmd
}

func (c *CLI) runInspect(ctx context.Context, path string, plain bool) error {
	resp, err := viewgraph.ReadResponseFile(path)
	if err != nil {
		return fmt.Errorf("load layout %s: %w", path, err)
	}
	if resp.Len() == 0 {
		printInfo("Layout has no entities")
		return nil
	}
	if plain {
		fmt.Println(renderResponseTable(resp))
		return nil
	}

	p := tea.NewProgram(NewLayoutBrowserModel(path, resp), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run inspector: %w", err)
	}
	return nil
}

// =============================================================================
// LayoutBrowserModel - Interactive position browser
// =============================================================================

// categoryFilters is the tab order of the filter. The zero category shows
// every entity.
var categoryFilters = []viewgraph.Category{0, viewgraph.CategoryInput, viewgraph.CategoryOutput, viewgraph.CategoryNode}

// LayoutBrowserModel is the bubbletea model for browsing a layout response.
type LayoutBrowserModel struct {
	Title   string
	Entries []viewgraph.Entry
	Filter  int
	Cursor  int
	Height  int
	Offset  int

	visible []viewgraph.Entry
}

// NewLayoutBrowserModel creates a browser over every position of resp.
func NewLayoutBrowserModel(title string, resp viewgraph.Response) LayoutBrowserModel {
	m := LayoutBrowserModel{
		Title:   title,
		Entries: resp.Entries(),
		Height:  15,
	}
	m.visible = m.filtered()
	return m
}

// Visible returns the entries that pass the current filter.
func (m LayoutBrowserModel) Visible() []viewgraph.Entry {
	return m.visible
}

func (m LayoutBrowserModel) filtered() []viewgraph.Entry {
	want := categoryFilters[m.Filter]
	if want == 0 {
		return m.Entries
	}
	var out []viewgraph.Entry
	for _, e := range m.Entries {
		if e.Key.Category == want {
			out = append(out, e)
		}
	}
	return out
}

func (m LayoutBrowserModel) Init() tea.Cmd {
	return nil
}

func (m LayoutBrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			m.move(-1)
		case "down", "j":
			m.move(1)
		case "pgup":
			m.move(-m.Height)
		case "pgdown":
			m.move(m.Height)
		case "home", "g":
			m.move(-len(m.visible))
		case "end", "G":
			m.move(len(m.visible))
		case "tab":
			m.Filter = (m.Filter + 1) % len(categoryFilters)
			m.visible = m.filtered()
			m.Cursor, m.Offset = 0, 0
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
		m.move(0)
	}
	return m, nil
}

// move shifts the cursor by delta, clamped to the visible entries, and
// scrolls so the cursor stays on screen.
func (m *LayoutBrowserModel) move(delta int) {
	if len(m.visible) == 0 {
		m.Cursor, m.Offset = 0, 0
		return
	}
	m.Cursor = min(max(m.Cursor+delta, 0), len(m.visible)-1)
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
}

func (m LayoutBrowserModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  tab filter  q quit"))
	b.WriteString("\n\n")
	b.WriteString(m.filterBar())
	b.WriteString("\n")

	end := min(m.Offset+m.Height, len(m.visible))
	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		e := m.visible[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		rows = append(rows, []string{cursor, e.Key.Category.String(), e.Key.Name, formatCoord(e.Point.X), formatCoord(e.Point.Y)})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Category", "Name", "X", "Y").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			base := lipgloss.NewStyle()
			if col >= 3 {
				base = base.Align(lipgloss.Right)
			}
			if m.Offset+row == m.Cursor {
				return base.Foreground(colorGreen).Bold(true)
			}
			if col == 1 {
				return base.Foreground(colorDim)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	if len(m.visible) == 0 {
		b.WriteString(listDimStyle.Render("  no entities in this category"))
	} else {
		b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.visible))))
	}

	return b.String()
}

func (m LayoutBrowserModel) filterBar() string {
	labels := make([]string, len(categoryFilters))
	for i, c := range categoryFilters {
		label := "all"
		if c != 0 {
			label = c.String()
		}
		if i == m.Filter {
			labels[i] = listSelectedStyle.Render("[" + label + "]")
		} else {
			labels[i] = listNormalStyle.Render(" " + label + " ")
		}
	}
	return strings.Join(labels, " ")
}
