// Package idgen issues numeric, time-ordered identifiers.
package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Snowflake wraps a node; NodeID must be unique per running replica (0-1023).
type Snowflake struct {
	node *snowflake.Node
}

func NewSnowflake(nodeID int64) (*Snowflake, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Snowflake{node: node}, nil
}

func (s *Snowflake) NextID() int64 {
	return s.node.Generate().Int64()
}
