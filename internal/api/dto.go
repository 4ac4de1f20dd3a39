// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package api

import (
	"encoding/hex"
	"time"

	"github.com/BoostyLabs/anchor/bitcoin/anchor"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/index"
	"github.com/BoostyLabs/anchor/bitcoin/anchor/resolver"
)

// Message is a transport form of the indexed message.
type Message struct {
	TxID        string    `json:"txid"`
	Vout        uint32    `json:"vout"`
	Kind        string    `json:"kind"`
	Anchors     []string  `json:"anchors"`
	Body        string    `json:"body"` // hex.
	Text        *string   `json:"text,omitempty"`
	BlockHeight *int64    `json:"block_height"`
	CreatedAt   time.Time `json:"created_at"`
}

// ThreadNode is a transport form of the thread node.
type ThreadNode struct {
	Message       Message       `json:"message"`
	Depth         int           `json:"depth"`
	ReplyCount    int           `json:"reply_count"`
	TotalMessages int           `json:"total_messages"`
	Replies       []*ThreadNode `json:"replies"`
}

// ThreadResponse is a response of the thread endpoint.
type ThreadResponse struct {
	Root          Message       `json:"root"`
	Replies       []*ThreadNode `json:"replies"`
	TotalMessages int           `json:"total_messages"`
	Truncated     bool          `json:"truncated"`
	Cycles        int           `json:"cycles"`
}

func newMessage(message index.IndexedMessage) Message {
	anchors := make([]string, 0, len(message.Anchors))
	for _, ref := range message.Anchors {
		anchors = append(anchors, ref.String())
	}

	dto := Message{
		TxID:        message.TxID.String(),
		Vout:        message.Vout,
		Kind:        message.Kind.String(),
		Anchors:     anchors,
		Body:        hex.EncodeToString(message.Body),
		BlockHeight: message.BlockHeight,
		CreatedAt:   message.CreatedAt,
	}
	if message.Kind == anchor.KindText {
		text := string(message.Body)
		dto.Text = &text
	}

	return dto
}

func newThreadNodes(nodes []*resolver.ThreadNode) []*ThreadNode {
	result := make([]*ThreadNode, 0, len(nodes))
	for _, node := range nodes {
		result = append(result, &ThreadNode{
			Message:       newMessage(node.Message),
			Depth:         node.Depth,
			ReplyCount:    node.ReplyCount,
			TotalMessages: node.TotalMessages,
			Replies:       newThreadNodes(node.Replies),
		})
	}

	return result
}

func newThreadResponse(thread *resolver.Thread) ThreadResponse {
	return ThreadResponse{
		Root:          newMessage(thread.Root.Message),
		Replies:       newThreadNodes(thread.Root.Replies),
		TotalMessages: thread.TotalMessages(),
		Truncated:     thread.Truncated,
		Cycles:        thread.Cycles,
	}
}
