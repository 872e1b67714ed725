package id

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Node ids per binary. Each process that writes rows needs its own.
const (
	NodeServer int64 = 1
	NodeWorker int64 = 2
)

var (
	node *snowflake.Node
	once sync.Once
)

// Init sets up the process-wide snowflake node. Only the first call has an
// effect.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		node, err = snowflake.NewNode(nodeID)
		if err != nil {
			err = fmt.Errorf("creating snowflake node %d: %w", nodeID, err)
		}
	})
	return err
}

// New returns a time-ordered id for leads, events, rate usage and webhook
// rows. Init must have been called.
func New() int64 {
	return node.Generate().Int64()
}
