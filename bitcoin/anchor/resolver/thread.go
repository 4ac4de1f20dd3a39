// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package resolver

import (
	"context"
	"errors"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/index"
)

// ErrMessageNotFound defines that thread root is not indexed.
var ErrMessageNotFound = errors.New("thread root message not found")

// Budget limits thread construction. Zero fields fall back to the resolver defaults.
type Budget struct {
	MaxDepth int // root is at depth 0.
	MaxNodes int // root included.
}

// DefaultBudget defines budget used when nothing else is configured.
var DefaultBudget = Budget{MaxDepth: 64, MaxNodes: 10_000}

// withDefaults returns budget with zero fields taken from defaults.
func (b Budget) withDefaults(defaults Budget) Budget {
	if b.MaxDepth <= 0 {
		b.MaxDepth = defaults.MaxDepth
	}
	if b.MaxNodes <= 0 {
		b.MaxNodes = defaults.MaxNodes
	}

	return b
}

// Clamp returns budget with fields lowered to the limit ones.
func (b Budget) Clamp(limit Budget) Budget {
	return Budget{MaxDepth: min(b.MaxDepth, limit.MaxDepth), MaxNodes: min(b.MaxNodes, limit.MaxNodes)}
}

// ThreadNode describes message with its direct replies.
type ThreadNode struct {
	Message       index.IndexedMessage
	Depth         int
	Replies       []*ThreadNode
	ReplyCount    int // direct replies.
	TotalMessages int // this message and all its descendants.
}

// Thread describes reply tree rooted at the requested message.
type Thread struct {
	Root      *ThreadNode
	Truncated bool // budget exceeded, tree is partial.
	Cycles    int  // revisited messages, their branches are dropped.
}

// TotalMessages returns count of messages in the thread.
func (t *Thread) TotalMessages() int {
	if t.Root == nil {
		return 0
	}

	return t.Root.TotalMessages
}

// arenaNode is a thread node addressed by its position in the arena.
type arenaNode struct {
	message  index.IndexedMessage
	depth    int
	children []int
	total    int
}

// threadBuilder accumulates single thread over one snapshot.
type threadBuilder struct {
	resolver *Resolver
	snapshot index.Snapshot
	budget   Budget

	arena     []arenaNode
	visited   map[wire.OutPoint]struct{}
	truncated bool
	cycles    int
}

// BuildThread builds reply tree of the message breadth-first over one index snapshot.
// Replies of a message are messages which canonical parent anchor resolves uniquely to it.
func (r *Resolver) BuildThread(ctx context.Context, txid chainhash.Hash, vout uint32, budget Budget) (*Thread, error) {
	snapshot, err := r.index.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = snapshot.Close() }()

	root, err := snapshot.Message(ctx, txid, vout)
	if err != nil {
		if errors.Is(err, index.ErrNotFound) {
			return nil, ErrMessageNotFound
		}

		return nil, err
	}

	builder := &threadBuilder{
		resolver: r,
		snapshot: snapshot,
		budget:   budget.withDefaults(r.budget),
		visited:  map[wire.OutPoint]struct{}{{Hash: root.TxID, Index: root.Vout}: {}},
	}
	builder.arena = append(builder.arena, arenaNode{message: *root})

	if err = builder.walk(ctx); err != nil {
		return nil, err
	}

	return &Thread{
		Root:      builder.tree(),
		Truncated: builder.truncated,
		Cycles:    builder.cycles,
	}, nil
}

// walk fills arena level by level with batched lookups per level.
func (b *threadBuilder) walk(ctx context.Context) error {
	level := []int{0}
	for depth := 0; len(level) != 0; depth++ {
		replies, err := b.levelReplies(ctx, level)
		if err != nil {
			return err
		}

		var next []int
		for _, parent := range level {
			for _, reply := range replies[parent] {
				outpoint := wire.OutPoint{Hash: reply.TxID, Index: reply.Vout}
				if _, ok := b.visited[outpoint]; ok {
					b.cycles++
					b.resolver.logger.Warn("message revisited while building thread, branch dropped",
						"txid", reply.TxID.String(), "vout", reply.Vout, "depth", depth+1)
					continue
				}

				if depth+1 > b.budget.MaxDepth || len(b.arena) >= b.budget.MaxNodes {
					b.truncated = true
					return nil
				}

				b.visited[outpoint] = struct{}{}
				b.arena = append(b.arena, arenaNode{message: reply, depth: depth + 1})
				child := len(b.arena) - 1
				b.arena[parent].children = append(b.arena[parent].children, child)
				next = append(next, child)
			}
		}

		level = next
	}

	return nil
}

// levelReplies returns replies of the level nodes keyed by arena position.
// Nodes which anchor does not resolve uniquely get no replies.
func (b *threadBuilder) levelReplies(ctx context.Context, level []int) (map[int][]index.IndexedMessage, error) {
	anchors := make([]anchor.Anchor, 0, len(level))
	positions := make(map[anchor.Anchor]int, len(level))
	for _, pos := range level {
		ref, ok := b.arena[pos].message.Anchor()
		if !ok {
			continue
		}

		anchors = append(anchors, ref)
		positions[ref] = pos
	}
	if len(anchors) == 0 {
		return nil, nil
	}

	candidates, err := b.snapshot.MessagesAt(ctx, anchors)
	if err != nil {
		return nil, err
	}

	unique := make([]anchor.Anchor, 0, len(anchors))
	for _, ref := range anchors {
		if _, ok := classify(candidates[ref]).(Resolved); ok {
			unique = append(unique, ref)
			continue
		}

		b.resolver.logger.Debug("ambiguous anchor, replies are not attributed", "anchor", ref.String())
	}
	if len(unique) == 0 {
		return nil, nil
	}

	replies, err := b.snapshot.Replies(ctx, unique)
	if err != nil {
		return nil, err
	}

	result := make(map[int][]index.IndexedMessage, len(replies))
	for ref, messages := range replies {
		result[positions[ref]] = messages
	}

	return result, nil
}

// tree computes totals bottom-up and converts arena into linked nodes.
func (b *threadBuilder) tree() *ThreadNode {
	// children are always placed after their parent.
	for pos := len(b.arena) - 1; pos >= 0; pos-- {
		b.arena[pos].total = 1
		for _, child := range b.arena[pos].children {
			b.arena[pos].total += b.arena[child].total
		}
	}

	nodes := make([]*ThreadNode, len(b.arena))
	for pos := len(b.arena) - 1; pos >= 0; pos-- {
		node := &ThreadNode{
			Message:       b.arena[pos].message,
			Depth:         b.arena[pos].depth,
			ReplyCount:    len(b.arena[pos].children),
			TotalMessages: b.arena[pos].total,
			Replies:       make([]*ThreadNode, 0, len(b.arena[pos].children)),
		}
		for _, child := range b.arena[pos].children {
			node.Replies = append(node.Replies, nodes[child])
		}
		nodes[pos] = node
	}

	return nodes[0]
}
