package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"btp/internal/domain"
	"btp/internal/monitor"
	"btp/internal/storage"
)

// TestService is what the explorer needs from the coordinator.
type TestService interface {
	Targets() []*domain.Target
	Run(ctx context.Context, items []domain.SelectionItem, reporter monitor.Reporter) (*domain.RunRecord, error)
	Reload(ctx context.Context, targetID string) error
	Cancel() int
}

// Explorer displays every target's test tree in an interactive TUI and runs
// the selected tests.
type Explorer struct {
	service TestService
	storage storage.Storage

	app     *tview.Application
	tree    *tview.TreeView
	header  *tview.TextView
	details *tview.TextView

	mu      sync.Mutex
	nodes   map[string]*tview.TreeNode
	results map[string]domain.NodeResult
	running bool
}

// NewExplorer creates a new Explorer. st may be nil.
func NewExplorer(service TestService, st storage.Storage) *Explorer {
	return &Explorer{
		service: service,
		storage: st,
		nodes:   make(map[string]*tview.TreeNode),
		results: make(map[string]domain.NodeResult),
	}
}

// View runs the TUI until the user quits or ctx is cancelled.
func (e *Explorer) View(ctx context.Context) error {
	if e.storage != nil {
		if last, err := e.storage.Load(); err == nil {
			for _, r := range last.Results {
				e.results[r.ID] = r
			}
		}
	}

	e.app = tview.NewApplication()
	e.header = tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true)
	e.details = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)
	e.tree = tview.NewTreeView()
	e.tree.SetGraphicsColor(tcell.ColorDarkCyan)
	e.rebuild()

	e.tree.SetChangedFunc(func(node *tview.TreeNode) {
		e.showDetails(node)
	})
	e.tree.SetSelectedFunc(func(node *tview.TreeNode) {
		node.SetExpanded(!node.IsExpanded())
	})
	e.tree.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			e.service.Cancel()
			e.app.Stop()
			return nil
		}
		if event.Key() != tcell.KeyRune {
			return event
		}
		id := e.selectedID()
		switch event.Rune() {
		case 'r':
			e.startRun(ctx, []domain.SelectionItem{{ID: id}})
		case 'x':
			e.startRun(ctx, []domain.SelectionItem{{ID: domain.AllTargetsID}, {ID: id, Excluded: true}})
		case 'c':
			if n := e.service.Cancel(); n > 0 {
				e.setHeader(fmt.Sprintf("[yellow]cancelled %d run(s)", n))
			}
		case 'd':
			e.reload(ctx, domain.TargetOf(id))
		case 'q':
			e.app.Stop()
		default:
			return event
		}
		return nil
	})

	e.setHeader("")
	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(e.tree, 0, 1, true).
		AddItem(e.details, 0, 1, false)
	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(e.header, 1, 0, false).
		AddItem(body, 0, 1, true)

	go func() {
		<-ctx.Done()
		e.app.Stop()
	}()
	if err := e.app.SetRoot(layout, true).SetFocus(e.tree).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

// rebuild recreates the tree widget from the service's current targets.
func (e *Explorer) rebuild() {
	e.mu.Lock()
	defer e.mu.Unlock()

	root := tview.NewTreeNode("all binaries").SetReference(domain.AllTargetsID).SetColor(tcell.ColorWhite)
	e.nodes = map[string]*tview.TreeNode{domain.AllTargetsID: root}
	for _, t := range e.service.Targets() {
		if n := e.addNode(t.Tree, t.Tree.Root); n != nil {
			root.AddChild(n)
		}
	}
	e.tree.SetRoot(root).SetCurrentNode(root)
}

func (e *Explorer) addNode(tree *domain.Tree, id string) *tview.TreeNode {
	n, ok := tree.Lookup(id)
	if !ok {
		return nil
	}
	res := e.results[id]
	tn := tview.NewTreeNode(nodeText(n, res)).
		SetReference(n).
		SetColor(statusColor(n, res.Status)).
		SetExpanded(n.Kind == domain.KindBinaryRoot)
	e.nodes[id] = tn
	for _, c := range n.Children {
		if child := e.addNode(tree, c); child != nil {
			tn.AddChild(child)
		}
	}
	return tn
}

func (e *Explorer) selectedID() string {
	current := e.tree.GetCurrentNode()
	if current == nil {
		return domain.AllTargetsID
	}
	if n, ok := current.GetReference().(*domain.Node); ok {
		return n.ID
	}
	return domain.AllTargetsID
}

func (e *Explorer) showDetails(tn *tview.TreeNode) {
	n, ok := tn.GetReference().(*domain.Node)
	if !ok {
		e.details.SetText("")
		return
	}
	e.mu.Lock()
	res := e.results[n.ID]
	e.mu.Unlock()
	e.details.SetText(detailsText(n, res)).ScrollToBeginning()
}

func (e *Explorer) setHeader(status string) {
	text := " [yellow]r[white] run  [yellow]x[white] run all but this  [yellow]c[white] cancel  [yellow]d[white] rediscover  [yellow]q[white] quit "
	if status != "" {
		text = status + "[white] |" + text
	}
	e.header.SetText(text)
}

func (e *Explorer) startRun(ctx context.Context, items []domain.SelectionItem) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		e.setHeader("[red]a run is already in progress")
		return
	}
	e.running = true
	e.mu.Unlock()
	e.setHeader("[cyan]running...")

	go func() {
		record, err := e.service.Run(ctx, items, &explorerReporter{e: e})
		e.app.QueueUpdateDraw(func() {
			e.mu.Lock()
			e.running = false
			e.mu.Unlock()
			switch {
			case err != nil:
				e.setHeader("[red]" + tview.Escape(err.Error()))
			case record != nil:
				e.setHeader(fmt.Sprintf("[green]%d passed [red]%d failed [yellow]%d errored",
					record.Meta.PassedCases, record.Meta.FailedCases, record.Meta.ErroredCases))
			}
		})
	}()
}

func (e *Explorer) reload(ctx context.Context, targetID string) {
	if targetID == domain.AllTargetsID {
		return
	}
	go func() {
		err := e.service.Reload(ctx, targetID)
		e.app.QueueUpdateDraw(func() {
			e.rebuild()
			if err != nil {
				e.setHeader("[red]" + tview.Escape(err.Error()))
				return
			}
			e.setHeader("[cyan]rediscovered " + targetID)
		})
	}()
}

// update records a result and recolors its node. It runs on the UI goroutine.
func (e *Explorer) update(n *domain.Node, res domain.NodeResult) {
	e.mu.Lock()
	e.results[n.ID] = res
	tn := e.nodes[n.ID]
	e.mu.Unlock()
	if tn == nil {
		return
	}
	tn.SetText(nodeText(n, res)).SetColor(statusColor(n, res.Status))
	if e.tree.GetCurrentNode() == tn {
		e.showDetails(tn)
	}
}

// explorerReporter moves run callbacks onto the UI goroutine.
type explorerReporter struct {
	e *Explorer
}

func (r *explorerReporter) post(n *domain.Node, res domain.NodeResult) {
	r.e.app.QueueUpdateDraw(func() { r.e.update(n, res) })
}

func (r *explorerReporter) Started(n *domain.Node) {
	r.post(n, domain.NodeResult{ID: n.ID, Status: domain.StatusStarted})
}

func (r *explorerReporter) Passed(n *domain.Node, d time.Duration) {
	r.post(n, domain.NodeResult{ID: n.ID, Status: domain.StatusPassed, Duration: d})
}

func (r *explorerReporter) Failed(n *domain.Node, msgs []domain.Message, d time.Duration) {
	r.post(n, domain.NodeResult{ID: n.ID, Status: domain.StatusFailed, Messages: msgs, Duration: d})
}

func (r *explorerReporter) Errored(n *domain.Node, msgs []domain.Message) {
	r.post(n, domain.NodeResult{ID: n.ID, Status: domain.StatusErrored, Messages: msgs})
}

func (r *explorerReporter) Output(string, string) {}

func nodeText(n *domain.Node, res domain.NodeResult) string {
	text := n.Label
	switch res.Status {
	case domain.StatusPassed:
		text = "✓ " + text
	case domain.StatusFailed:
		text = "✗ " + text
	case domain.StatusErrored:
		text = "! " + text
	case domain.StatusStarted:
		text = "… " + text
	}
	if n.Error != "" {
		text += " (discovery failed)"
	}
	return text
}

func statusColor(n *domain.Node, s domain.Status) tcell.Color {
	if n.Error != "" {
		return tcell.ColorRed
	}
	switch s {
	case domain.StatusPassed:
		return tcell.ColorGreen
	case domain.StatusFailed, domain.StatusErrored:
		return tcell.ColorRed
	case domain.StatusStarted:
		return tcell.ColorYellow
	}
	if n.Kind == domain.KindCase {
		return tcell.ColorWhite
	}
	return tcell.ColorDarkCyan
}

// detailsText formats a node and its last result using tview color tags.
func detailsText(n *domain.Node, res domain.NodeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[cyan]%s:[white] %s\n", n.Kind, tview.Escape(n.ID))
	if n.HasLocation() {
		fmt.Fprintf(&b, "[cyan]Location:[white] %s:%d\n", tview.Escape(n.SourceFile), n.SourceLine+1)
	}
	if n.Error != "" {
		fmt.Fprintf(&b, "\n[red]%s[white]\n", tview.Escape(n.Error))
		return b.String()
	}
	if res.Status == "" {
		b.WriteString("\n[gray]not run yet[white]\n")
		return b.String()
	}
	fmt.Fprintf(&b, "[cyan]Status:[white] %s", res.Status)
	if res.Duration > 0 {
		fmt.Fprintf(&b, " (%s)", res.Duration)
	}
	b.WriteString("\n")
	if len(res.Messages) > 0 {
		b.WriteString("\n[yellow]Messages:[white]\n")
		for _, m := range res.Messages {
			fmt.Fprintf(&b, "  %s\n", tview.Escape(formatMessage(m)))
		}
	}
	return b.String()
}
