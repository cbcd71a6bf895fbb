// Package validation runs the structural checks that decide whether a workflow graph can be
// executed. Checks never mutate the graph and can be re-run after every edit.
package validation

import (
	"fmt"
	"sort"

	"github.com/kchakrav/CRMApp-sub002/pkg/graph"
	"github.com/kchakrav/CRMApp-sub002/pkg/models"
)

// Issue codes.
const (
	CodeEmptyWorkflow         = "empty_workflow"
	CodeNoEntry               = "no_entry"
	CodeDisconnectedNode      = "disconnected_node"
	CodeJumpTargetMissing     = "jump_target_missing"
	CodeJumpTargetNotFound    = "jump_target_not_found"
	CodeJumpTargetTerminal    = "jump_target_terminal"
	CodeSignalKeyMissing      = "signal_key_missing"
	CodeSignalTimeoutEdge     = "signal_timeout_edge_missing"
	CodeCorrelationKeyMissing = "correlation_key_missing"
	CodeDuplicateSignalKey    = "duplicate_signal_key"
	CodeOrchestrationLoop     = "orchestration_loop"
)

// Issue is one finding. NodeID is empty for workflow-level findings.
type Issue struct {
	Code    string `json:"code"`
	NodeID  string `json:"node_id,omitempty"`
	Message string `json:"message"`
}

// Report separates blocking errors from advisory warnings.
type Report struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Valid reports whether the report holds no blocking error.
func (r Report) Valid() bool {
	return len(r.Errors) == 0
}

// ErrorMessages returns the human-readable error messages.
func (r Report) ErrorMessages() []string {
	return messages(r.Errors)
}

// WarningMessages returns the human-readable warning messages.
func (r Report) WarningMessages() []string {
	return messages(r.Warnings)
}

func messages(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Message)
	}

	return out
}

func (r *Report) fail(code, nodeID, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Code: code, NodeID: nodeID, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) warn(code, nodeID, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Code: code, NodeID: nodeID, Message: fmt.Sprintf(format, args...)})
}

// Validate checks the graph and returns every error and warning found.
func Validate(g *graph.Graph) Report {
	report := Report{Errors: []Issue{}, Warnings: []Issue{}}

	doc := g.Document()
	if len(doc.Nodes) == 0 {
		report.fail(CodeEmptyWorkflow, "", "Workflow has no nodes")
	}

	index := make(map[string]*models.Node, len(doc.Nodes))
	for _, n := range doc.Nodes {
		index[n.ID] = n
	}

	checkEntry(&report, doc)
	checkDisconnected(&report, doc)

	for _, n := range doc.Nodes {
		switch cfg := n.Config.(type) {
		case *models.JumpConfig:
			checkJump(&report, n, cfg, index)
		case *models.ExternalSignalConfig:
			checkSignal(&report, n, cfg, doc.Connections)
		case *models.SplitConfig, models.GenericConfig:
		}
	}

	checkDuplicateSignalKeys(&report, doc)

	if g.HasCycle() {
		report.warn(CodeOrchestrationLoop, "", "Workflow contains a loop; make sure it is an intended retry or branch")
	}

	return report
}

func label(n *models.Node) string {
	if n.Name == "" {
		return n.ID
	}

	return fmt.Sprintf("%q (%s)", n.Name, n.ID)
}

func checkEntry(report *Report, doc *models.Document) {
	for _, n := range doc.Nodes {
		if n.IsEntry() {
			return
		}
	}

	report.fail(CodeNoEntry, "", "Workflow must contain at least one entry node")
}

func checkDisconnected(report *Report, doc *models.Document) {
	touched := make(map[string]bool, len(doc.Nodes))
	for _, c := range doc.Connections {
		touched[c.From] = true
		touched[c.To] = true
	}

	for _, n := range doc.Nodes {
		if n.IsEntry() || touched[n.ID] {
			continue
		}

		report.fail(CodeDisconnectedNode, n.ID, "Node %s is disconnected", label(n))
	}
}

func checkJump(report *Report, n *models.Node, cfg *models.JumpConfig, index map[string]*models.Node) {
	if cfg.TargetNodeID == "" {
		report.fail(CodeJumpTargetMissing, n.ID, "Jump node %s has no target", label(n))

		return
	}

	target, ok := index[cfg.TargetNodeID]
	if !ok {
		report.fail(CodeJumpTargetNotFound, n.ID, "Jump node %s targets missing node %s", label(n), cfg.TargetNodeID)

		return
	}

	if target.Type.IsTerminal() {
		report.fail(CodeJumpTargetTerminal, n.ID, "Jump node %s cannot target %s node %s", label(n), target.Type, label(target))
	}
}

func checkSignal(report *Report, n *models.Node, cfg *models.ExternalSignalConfig, connections []*models.Connection) {
	if cfg.SignalKey == "" {
		report.fail(CodeSignalKeyMissing, n.ID, "External signal node %s has no signal key", label(n))
	}

	if cfg.TimeoutEnabled && !hasTimeoutEdge(n.ID, connections) {
		report.fail(CodeSignalTimeoutEdge, n.ID, "External signal node %s has a timeout but no timeout connection", label(n))
	}

	if cfg.RequireCorrelation && cfg.CorrelationKey == "" {
		report.fail(CodeCorrelationKeyMissing, n.ID, "External signal node %s requires a correlation key", label(n))
	}
}

func hasTimeoutEdge(nodeID string, connections []*models.Connection) bool {
	for _, c := range connections {
		if c.From == nodeID && c.TransitionID == models.TransitionTimeout {
			return true
		}
	}

	return false
}

func checkDuplicateSignalKeys(report *Report, doc *models.Document) {
	owners := make(map[string][]string)

	for _, n := range doc.Nodes {
		cfg := n.ExternalSignal()
		if cfg == nil || cfg.SignalKey == "" {
			continue
		}

		owners[cfg.SignalKey] = append(owners[cfg.SignalKey], n.ID)
	}

	keys := make([]string, 0, len(owners))
	for key, ids := range owners {
		if len(ids) > 1 {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	for _, key := range keys {
		report.fail(CodeDuplicateSignalKey, "", "Signal key %q is used by several external signal nodes: %v", key, owners[key])
	}
}
