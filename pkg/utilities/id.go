package utilities

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// IDGenerator produces globally unique row identifiers (Fid values).
type IDGenerator func() string

var (
	nodesMu sync.Mutex
	nodes   = map[int64]*snowflake.Node{}
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewUUID returns a random UUID without dashes.
func NewUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewSnowflakeID generates a snowflake ID string using a node ID from
// the environment variable SNOWFLAKE_NODE, defaulting to node 1.
func NewSnowflakeID() string {
	return NewSnowflakeIDWithNode(snowflakeNodeFromEnv())
}

// NewSnowflakeIDWithNode generates a snowflake ID string using the provided node ID.
// Nodes are shared per ID so sequence numbers stay unique within a millisecond.
// If the node cannot be initialized, it falls back to a KSUID string.
func NewSnowflakeIDWithNode(nodeID int64) string {
	node, err := snowflakeNode(nodeID)
	if err != nil {
		return NewKSUID()
	}
	return node.Generate().String()
}

func snowflakeNode(nodeID int64) (*snowflake.Node, error) {
	nodesMu.Lock()
	defer nodesMu.Unlock()
	if n, ok := nodes[nodeID]; ok {
		return n, nil
	}
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	nodes[nodeID] = n
	return n, nil
}

func snowflakeNodeFromEnv() int64 {
	v := os.Getenv("SNOWFLAKE_NODE")
	if v == "" {
		return 1
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 1
	}
	return id
}

// IDGeneratorFor maps a strategy name (snowflake, ksuid, uuid) to a generator.
// Unknown names use snowflake.
func IDGeneratorFor(strategy string) IDGenerator {
	switch strings.ToLower(strategy) {
	case "ksuid":
		return NewKSUID
	case "uuid":
		return NewUUID
	default:
		return NewSnowflakeID
	}
}

// IDGeneratorFromEnv reads FAP_ID_STRATEGY.
func IDGeneratorFromEnv() IDGenerator {
	return IDGeneratorFor(os.Getenv("FAP_ID_STRATEGY"))
}
