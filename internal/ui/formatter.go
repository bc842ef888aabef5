package ui

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"btp/internal/domain"
)

// Formatter formats and displays output
type Formatter struct {
	out         io.Writer
	projectPath string
}

// NewFormatter creates a new Formatter
func NewFormatter(out io.Writer, projectPath string) *Formatter {
	return &Formatter{out: out, projectPath: projectPath}
}

// PrintTrees prints every target's test tree. last is optional; cases that
// failed or errored in it are marked with [F].
func (f *Formatter) PrintTrees(targets []*domain.Target, last *domain.RunRecord) {
	cases := 0
	for _, t := range targets {
		cases += t.Tree.Cases(t.Tree.Root)
	}
	fmt.Fprintln(f.out, color.GreenString("Found %d test case(s) in %d binary(ies):", cases, len(targets)))
	fmt.Fprintln(f.out)

	for i, t := range targets {
		root := t.Tree.RootNode()
		if root == nil {
			continue
		}
		header := fmt.Sprintf("%s (%s)", root.ID, f.relative(t.Path))
		if t.Tree.Failed() {
			fmt.Fprintf(f.out, "%s %s\n", color.CyanString(header), color.RedString("discovery failed: %s", root.Error))
		} else {
			fmt.Fprintln(f.out, color.CyanString(header))
			f.printChildren(t.Tree, root, "", last)
		}
		if i < len(targets)-1 {
			fmt.Fprintln(f.out)
		}
	}
}

func (f *Formatter) printChildren(tree *domain.Tree, node *domain.Node, prefix string, last *domain.RunRecord) {
	for i, id := range node.Children {
		child, ok := tree.Lookup(id)
		if !ok {
			continue
		}
		isLast := i == len(node.Children)-1
		connector, childPrefix := "├── ", "│   "
		if isLast {
			connector, childPrefix = "└── ", "    "
		}

		name := child.Name
		if child.Kind == domain.KindCase {
			name = color.YellowString(name)
			if res, ok := last.Result(child.ID); ok && (res.Status == domain.StatusFailed || res.Status == domain.StatusErrored) {
				name += " " + color.RedString("[F]")
			}
		}
		location := ""
		if child.HasLocation() {
			location = color.HiBlackString(" %s:%d", f.relative(child.SourceFile), child.SourceLine+1)
		}
		fmt.Fprintf(f.out, "%s%s%s%s\n", prefix, connector, name, location)
		f.printChildren(tree, child, prefix+childPrefix, last)
	}
}

type listedNode struct {
	ID       string        `yaml:"id"`
	Kind     string        `yaml:"kind"`
	Label    string        `yaml:"label"`
	File     string        `yaml:"file,omitempty"`
	Line     int           `yaml:"line,omitempty"`
	Error    string        `yaml:"error,omitempty"`
	Children []*listedNode `yaml:"children,omitempty"`
}

// PrintYAML prints the test trees as a YAML document. Lines are 1-based.
func (f *Formatter) PrintYAML(targets []*domain.Target) error {
	var docs []*listedNode
	for _, t := range targets {
		if n := listNode(t.Tree, t.Tree.Root); n != nil {
			docs = append(docs, n)
		}
	}
	enc := yaml.NewEncoder(f.out)
	enc.SetIndent(2)
	if err := enc.Encode(docs); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func listNode(tree *domain.Tree, id string) *listedNode {
	n, ok := tree.Lookup(id)
	if !ok {
		return nil
	}
	out := &listedNode{ID: n.ID, Kind: n.Kind.String(), Label: n.Label, Error: n.Error}
	if n.HasLocation() {
		out.File = n.SourceFile
		out.Line = n.SourceLine + 1
	}
	for _, c := range n.Children {
		if child := listNode(tree, c); child != nil {
			out.Children = append(out.Children, child)
		}
	}
	return out
}

// PrintRunSummary prints the per-binary outcome table of a run followed by the
// failed cases and their messages.
func (f *Formatter) PrintRunSummary(record *domain.RunRecord) {
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	t.SetTitle("Test Run %s", record.Meta.RunID)
	t.AppendHeader(table.Row{"Binary", "Filter", "Exit", "Outcome"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Exit", Align: text.AlignRight},
	})
	for _, run := range record.Targets {
		filter := strings.Join(run.Filter, ":")
		if filter == "" {
			filter = "(all)"
		}
		t.AppendRow(table.Row{run.TargetID, filter, run.ExitCode, outcome(run)})
	}
	t.AppendFooter(table.Row{
		"Total",
		fmt.Sprintf("passed %d", record.Meta.PassedCases),
		fmt.Sprintf("failed %d", record.Meta.FailedCases),
		fmt.Sprintf("errored %d", record.Meta.ErroredCases),
	})
	t.SetStyle(table.StyleLight)
	t.Render()

	fmt.Fprintln(f.out)
	bad := record.Meta.FailedCases + record.Meta.ErroredCases
	if bad == 0 {
		fmt.Fprintln(f.out, color.GreenString("✓ All %d test case(s) passed in %s", record.Meta.PassedCases, record.Meta.Duration))
		return
	}
	fmt.Fprintln(f.out, color.RedString("✗ %d test case(s) failed in %s", bad, record.Meta.Duration))
	for _, res := range record.Results {
		if res.Status != domain.StatusFailed && res.Status != domain.StatusErrored {
			continue
		}
		fmt.Fprintf(f.out, "  %s %s\n", color.RedString("|_"), res.ID)
		for _, m := range res.Messages {
			fmt.Fprintf(f.out, "      %s\n", formatMessage(m))
		}
	}
}

func outcome(run domain.TargetRun) string {
	switch {
	case run.Rejected:
		return "rejected (already running)"
	case run.Cancelled:
		return "cancelled"
	case run.Error != "":
		return run.Error
	default:
		return "completed"
	}
}

func (f *Formatter) relative(path string) string {
	if f.projectPath == "" {
		return path
	}
	if rel, err := filepath.Rel(f.projectPath, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}
