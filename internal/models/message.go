// Copyright (C) 2025 Creditor Corp. Group.
// See LICENSE for copying information.

package models

import "time"

// Message represents protocol message found in transaction output.
type Message struct {
	TxID         string    `gorm:"column:tx_id;primaryKey;size:64"` // display hex.
	Vout         uint32    `gorm:"column:vout;primaryKey;autoIncrement:false;index:idx_anchor_messages_anchor,priority:2"`
	TxIDPrefix   string    `gorm:"column:tx_id_prefix;size:16;not null;index:idx_anchor_messages_anchor,priority:1"` // internal byte order hex.
	ParentPrefix *string   `gorm:"column:parent_prefix;size:16;index:idx_anchor_messages_parent,priority:1"`
	ParentVout   *uint32   `gorm:"column:parent_vout;index:idx_anchor_messages_parent,priority:2"`
	Kind         uint8     `gorm:"column:kind;not null"`
	Payload      []byte    `gorm:"column:payload;not null"`
	BlockHeight  *int64    `gorm:"column:block_height;index"`
	CreatedAt    time.Time `gorm:"column:created_at;index"`
}

// TableName overrides table name.
func (Message) TableName() string {
	return "anchor_messages"
}
