package unfold

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/normfold/pkg/errors"
	"github.com/matzehuels/normfold/pkg/graph"
	"github.com/matzehuels/normfold/pkg/graph/reach"
	"github.com/matzehuels/normfold/pkg/observability"
)

// Unfolder owns one rewrite of a graph. It is Active after [New] and
// Reverted after [Unfolder.Close].
type Unfolder struct {
	g       *graph.Graph
	top     graph.NodeID
	set     graph.NormSet
	session string

	root   graph.NodeID // aggregator, graph.NoNode when set is empty
	prop   *Propagation
	ledger *Ledger
	closed bool

	logger    *log.Logger
	reachOpts []reach.Option
	hookCtx   context.Context // carries observability values to OnFold
}

// Option configures an Unfolder.
type Option func(*Unfolder)

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(u *Unfolder) {
		if l != nil {
			u.logger = l
		}
	}
}

// WithReachOptions passes options to the reachability checker used for
// narrowing.
func WithReachOptions(opts ...reach.Option) Option {
	return func(u *Unfolder) { u.reachOpts = append(u.reachOpts, opts...) }
}

// New unfolds the normalization integrals below top for normSet.
//
// With an empty normSet nothing happens: Arg returns top and Close leaves the
// graph alone. Otherwise top is placed under a pass-through aggregator,
// normalization sets are propagated and narrowed, and pdfs are wrapped (see
// [Rewrite]). Read the effective top node with [Unfolder.Arg].
//
// A conflicting normalization request fails with a CONFLICTING_NORMALIZATION
// error whose cause is a [*ConflictError]; the graph is left unchanged.
func New(ctx context.Context, g *graph.Graph, top graph.NodeID, normSet graph.NormSet, opts ...Option) (*Unfolder, error) {
	u := &Unfolder{
		g:       g,
		top:     top,
		set:     graph.Canonical(normSet...),
		session: uuid.NewString(),
		root:    graph.NoNode,
		ledger:  &Ledger{},
		logger:  log.Default(),
		hookCtx: context.WithoutCancel(ctx),
	}
	for _, opt := range opts {
		opt(u)
	}

	topNode, ok := g.Node(top)
	if !ok {
		return nil, errors.New(errors.ErrCodeNodeNotFound, "top node %d is not part of the graph", top)
	}
	for _, v := range u.set {
		if _, ok := g.Node(v); !ok {
			return nil, errors.New(errors.ErrCodeNodeNotFound, "normalization variable %d is not part of the graph", v)
		}
	}

	hooks := observability.Unfold()
	hooks.OnUnfoldStart(ctx, u.session, topNode.Name, g.Names(u.set))
	start := time.Now()

	if len(u.set) == 0 {
		u.logger.Debug("empty normalization set, nothing to unfold", "top", topNode.Name)
		hooks.OnUnfoldComplete(ctx, u.session, 0, 0, time.Since(start), nil)
		return u, nil
	}

	err := u.unfold()
	if err != nil {
		hooks.OnUnfoldComplete(ctx, u.session, 0, 0, time.Since(start), err)
		return nil, err
	}

	hooks.OnUnfoldComplete(ctx, u.session, u.prop.Visited.Len(), u.ledger.Len(), time.Since(start), nil)
	u.logger.Debug("unfolded",
		"top", topNode.Name,
		"normset", g.FormatNormSet(u.set),
		"visited", u.prop.Visited.Len(),
		"wrapped", u.ledger.Len(),
		"redirects", u.ledger.Redirects(),
		"elapsed", time.Since(start).Round(time.Microsecond))
	return u, nil
}

func (u *Unfolder) unfold() error {
	g := u.g
	root, err := g.AddNode(graph.Node{
		Name:  "_unfold_top_" + u.session,
		Class: RootClass,
		Caps:  graph.CapDerived,
		Meta:  graph.Metadata{MetaSession: u.session},
		Impl:  passthrough{},
	})
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "add aggregator")
	}
	if err := g.AddServer(root, u.top, true); err != nil {
		u.removeRoot(root)
		return errors.Wrap(errors.ErrCodeInternal, err, "add aggregator")
	}

	checker := reach.New(g, root, u.reachOpts...)
	prop, err := Propagate(g, root, u.set)
	if err != nil {
		u.removeRoot(root)
		var ce *ConflictError
		if stderrors.As(err, &ce) {
			u.logger.Error(ce.Error())
			return errors.Wrap(errors.ErrCodeConflictingNormalization, ce, "unfold %s", g.Name(u.top))
		}
		return errors.Wrap(errors.ErrCodeInternal, err, "unfold %s", g.Name(u.top))
	}
	prop.Narrow(checker)

	ledger, err := Rewrite(g, prop, u.session)
	if err != nil {
		u.removeRoot(root)
		return errors.Wrap(errors.ErrCodeInternal, err, "unfold %s", g.Name(u.top))
	}
	for _, r := range ledger.entries {
		u.logger.Debug("wrapped",
			"node", g.MustNode(r.Original).Label(),
			"wrapper", g.Name(r.Wrapper),
			"clients", len(r.Clients()))
	}

	u.root = root
	u.prop = prop
	u.ledger = ledger
	return nil
}

func (u *Unfolder) removeRoot(root graph.NodeID) {
	if err := u.g.RemoveLast(root); err != nil {
		panic(fmt.Sprintf("unfold: remove aggregator: %v", err))
	}
}

// Arg returns the effective top node: the wrapper of top if top was wrapped,
// top itself otherwise.
func (u *Unfolder) Arg() graph.NodeID {
	if u.root == graph.NoNode || u.closed {
		return u.top
	}
	return u.g.ServerIDs(u.root)[0]
}

// Top returns the top node the unfolder was created for.
func (u *Unfolder) Top() graph.NodeID { return u.top }

// Ledger returns the replacements of the rewrite.
func (u *Unfolder) Ledger() *Ledger { return u.ledger }

// NormSet returns the narrowed normalization set of a pdf-like node.
func (u *Unfolder) NormSet(id graph.NodeID) (graph.NormSet, bool) {
	if u.prop == nil {
		return nil, false
	}
	s, ok := u.prop.Table[id]
	return s, ok
}

// Visited returns the nodes reached during propagation. It is empty for an
// empty normalization set and after Close.
func (u *Unfolder) Visited() *VisitedSet {
	if u.prop == nil {
		return newVisitedSet()
	}
	return u.prop.Visited
}

// Session returns the identifier used to name the nodes this unfolder adds.
func (u *Unfolder) Session() string { return u.session }

// Active reports whether Close has not been called yet.
func (u *Unfolder) Active() bool { return !u.closed }

// Close folds the graph back: every redirect is undone in reverse order, the
// wrappers and the aggregator are removed, and the normalization table is
// dropped. Server and client lists end up exactly as before [New].
//
// Calling Close twice returns an INTERNAL_ERROR error. A graph that was
// rewired or extended while the unfolder was active cannot be restored, and
// Close panics.
func (u *Unfolder) Close() error {
	if u.closed {
		return errors.New(errors.ErrCodeInternal, "unfolder %s already closed", u.session)
	}
	u.closed = true

	start := time.Now()
	restored := u.ledger.Len()
	if u.root != graph.NoNode {
		if err := u.ledger.undo(u.g); err != nil {
			panic(fmt.Sprintf("unfold: fold %s: %v", u.session, err))
		}
		u.assertDetached()
		if err := u.ledger.release(u.g); err != nil {
			panic(fmt.Sprintf("unfold: fold %s: %v", u.session, err))
		}
		u.removeRoot(u.root)
		u.root = graph.NoNode
		u.prop = nil
	}

	observability.Unfold().OnFold(u.hookCtx, u.session, restored, time.Since(start))
	u.logger.Debug("folded", "session", u.session, "restored", restored)
	return nil
}

// assertDetached panics if any node still references a wrapper.
func (u *Unfolder) assertDetached() {
	for _, w := range u.ledger.Wrappers() {
		if clients := u.g.MustNode(w).Clients(); len(clients) > 0 {
			panic(fmt.Sprintf("unfold: wrapper %s still used by %v after fold", u.g.Name(w), u.g.Names(clients)))
		}
	}
}

// With unfolds top for normSet, calls fn with the unfolder and folds the
// graph back before returning, whether fn fails or not.
func With(ctx context.Context, g *graph.Graph, top graph.NodeID, normSet graph.NormSet, fn func(*Unfolder) error, opts ...Option) (err error) {
	u, err := New(ctx, g, top, normSet, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := u.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(u)
}
