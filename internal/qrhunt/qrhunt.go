// Package qrhunt defines the core domain types, the traversal policy, and
// the ranking engine. It has zero external dependencies — everything here is
// pure Go over in-memory snapshots loaded by the store.
package qrhunt

import (
	"errors"
	"sort"
	"time"
)

type GameStatus string

const (
	StatusDraft     GameStatus = "draft"
	StatusActive    GameStatus = "active"
	StatusCompleted GameStatus = "completed"
)

type GameMode string

const (
	ModeLinear     GameMode = "linear"
	ModeRandom     GameMode = "random"
	ModeCollectAll GameMode = "collect_all"
)

type RankingMode string

const (
	RankPoints RankingMode = "points"
	RankNodes  RankingMode = "nodes"
	RankTime   RankingMode = "time"
)

// Scan rejection reasons. All are client-recoverable; the HTTP layer maps
// them to status codes and the sync replay reports them per entry.
var (
	ErrNodeNotFound      = errors.New("node not found")
	ErrNodeNotActivated  = errors.New("node not activated")
	ErrOutOfSequence     = errors.New("scan out of sequence")
	ErrPasswordRequired  = errors.New("password required")
	ErrPasswordIncorrect = errors.New("password incorrect")
	ErrGameNotActive     = errors.New("game not active")
	ErrTeamFinished      = errors.New("team already finished")
)

type Game struct {
	ID           string
	Slug         string
	Name         string
	Status       GameStatus
	Mode         GameMode
	RankingMode  RankingMode
	HintCost     float64
	WinnerTeamID string
	CreatedAt    time.Time
}

// Node is a physical checkpoint identified by its scannable key. Activated
// is the organizer-controlled gate: deactivated nodes are excluded from
// every candidate set.
type Node struct {
	ID        string
	GameID    string
	Key       string
	Name      string
	Clue      string
	Hint      string
	Password  string
	Points    int
	IsStart   bool
	IsEnd     bool
	Activated bool
}

// Edge is a directed link used only in linear mode. Each node has at most
// one outgoing edge.
type Edge struct {
	GameID     string
	FromNodeID string
	ToNodeID   string
}

type Team struct {
	ID            string
	GameID        string
	Name          string
	Code          string
	TotalPoints   int
	Visited       []string       // node IDs in discovery order
	HintsUsed     map[string]int // node ID -> points deducted
	OfferedNodeID string
	FinishedAt    *time.Time
	Winner        bool
}

// Standing is derived on read, never persisted.
type Standing struct {
	TeamID     string
	TeamName   string
	Rank       int
	Points     int
	NodesFound int
	HintsUsed  int
	FinishedAt *time.Time
	Winner     bool
}

// Graph is a read-only snapshot of one game's nodes and edges, loaded
// inside the scan transaction so no node disappears mid-decision.
type Graph struct {
	nodes     []Node
	byID      map[string]Node
	byKey     map[string]Node
	successor map[string]string
}

func NewGraph(nodes []Node, edges []Edge) *Graph {
	g := &Graph{
		byID:      make(map[string]Node, len(nodes)),
		byKey:     make(map[string]Node, len(nodes)),
		successor: make(map[string]string, len(edges)),
	}
	g.nodes = append(g.nodes, nodes...)
	sort.Slice(g.nodes, func(i, j int) bool { return g.nodes[i].ID < g.nodes[j].ID })
	for _, n := range g.nodes {
		g.byID[n.ID] = n
		g.byKey[n.Key] = n
	}
	for _, e := range edges {
		g.successor[e.FromNodeID] = e.ToNodeID
	}
	return g
}

// Nodes returns all nodes ordered by ID.
func (g *Graph) Nodes() []Node { return g.nodes }

func (g *Graph) NodeByID(id string) (Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

func (g *Graph) NodeByKey(key string) (Node, bool) {
	n, ok := g.byKey[key]
	return n, ok
}

// Successor returns the linear-mode edge target of the given node.
func (g *Graph) Successor(fromID string) (Node, bool) {
	to, ok := g.successor[fromID]
	if !ok {
		return Node{}, false
	}
	n, ok := g.byID[to]
	return n, ok
}
