// Package permission implements the per-session tool permission policy of
// spec §2.6: a mutable map from tool name to {auto-allow, prompt,
// session-allow, session-deny}. Generalized from sidekick's pattern-based
// common.CommandPermissionConfig (auto_approve/require_approval/deny
// command-pattern lists) into the simpler per-tool-name allow/deny ledger
// the genuine "rot" Rust core actually implements (rot-core/src/permission.rs),
// which is the more direct ground truth for this component's exact shape.
package permission

import "sync"

// ApprovalResponse is the closed set of answers a human approver can give
// when a tool call requires approval.
type ApprovalResponse string

const (
	AllowOnce   ApprovalResponse = "allow_once"
	AllowAlways ApprovalResponse = "allow_always"
	DenyOnce    ApprovalResponse = "deny_once"
	DenyAlways  ApprovalResponse = "deny_always"
)

// defaultAlwaysAllow mirrors the Rust PermissionSystem::default() list:
// read-only/information tools that never need a prompt.
var defaultAlwaysAllow = []string{"read", "grep", "glob", "webfetch"}

// System is the per-session policy ledger. The mutex is held only while
// reading or mutating the ledger itself; the approval callback that
// resolves a prompt is always invoked by the caller outside any lock held
// here, so a slow or blocking human approval can never stall unrelated
// RequiresApproval/IsDenied/HandleResponse calls on other tool names.
type System struct {
	mu sync.Mutex

	alwaysAllow    map[string]bool
	sessionAllowed map[string]bool
	sessionDenied  map[string]bool
}

// New returns a System seeded with the default always-allow set.
func New() *System {
	s := &System{
		alwaysAllow:    make(map[string]bool, len(defaultAlwaysAllow)),
		sessionAllowed: make(map[string]bool),
		sessionDenied:  make(map[string]bool),
	}
	for _, name := range defaultAlwaysAllow {
		s.alwaysAllow[name] = true
	}
	return s
}

// RequiresApproval reports whether toolName needs an interactive prompt
// before it may run, given the rules accumulated so far this session.
func (s *System) RequiresApproval(toolName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alwaysAllow[toolName] || s.sessionAllowed[toolName] {
		return false
	}
	return true
}

// IsDenied reports whether toolName has been permanently denied this
// session.
func (s *System) IsDenied(toolName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionDenied[toolName]
}

// HandleResponse records the session-scoped effect of an approval
// decision. AllowOnce and DenyOnce are one-shot and leave no ledger entry;
// only the Always variants persist for the rest of the session.
func (s *System) HandleResponse(toolName string, response ApprovalResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch response {
	case AllowAlways:
		s.sessionAllowed[toolName] = true
	case DenyAlways:
		s.sessionDenied[toolName] = true
	}
}

// Approver resolves an approval prompt for a tool call, returning the
// human's response. Implementations (terminal prompt, IDE dialog, scripted
// auto-responder for tests) live outside this package.
type Approver func(toolName string, argsSummary string) ApprovalResponse

// Resolve implements the dispatch-time permission check of spec §4.3: deny
// outright if session-denied, auto-allow if the ledger says so, otherwise
// invoke approve (outside the lock) and apply its response to the ledger
// before returning whether the call may proceed.
func (s *System) Resolve(toolName, argsSummary string, approve Approver) bool {
	if s.IsDenied(toolName) {
		return false
	}
	if !s.RequiresApproval(toolName) {
		return true
	}

	response := approve(toolName, argsSummary)
	s.HandleResponse(toolName, response)

	switch response {
	case AllowOnce, AllowAlways:
		return true
	default:
		return false
	}
}
