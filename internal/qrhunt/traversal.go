package qrhunt

import "math/rand"

// CandidateSet returns the nodes a team may legally scan next, ordered by
// node ID. Deactivated nodes never appear. In collect-all mode, end nodes
// are withheld until every activated non-end node has been visited.
func CandidateSet(mode GameMode, g *Graph, visited []string) []Node {
	seen := make(map[string]bool, len(visited))
	for _, id := range visited {
		seen[id] = true
	}

	if mode == ModeLinear {
		if len(visited) == 0 {
			return startNodes(g)
		}
		last := visited[len(visited)-1]
		next, ok := g.Successor(last)
		if !ok || !next.Activated || seen[next.ID] {
			return nil
		}
		return []Node{next}
	}

	endReady := mode != ModeCollectAll || allNonEndVisited(g, seen)

	var out []Node
	for _, n := range g.Nodes() {
		if !n.Activated || seen[n.ID] {
			continue
		}
		if n.IsEnd && !endReady {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Admissible reports whether a scan of the given node is legal for the
// team's current state. A team with zero visits may always scan an
// activated start node, in any mode.
func Admissible(mode GameMode, g *Graph, visited []string, nodeID string) bool {
	if len(visited) == 0 {
		if n, ok := g.NodeByID(nodeID); ok && n.IsStart && n.Activated {
			return true
		}
	}
	for _, n := range CandidateSet(mode, g, visited) {
		if n.ID == nodeID {
			return true
		}
	}
	return false
}

// NextClue selects the node to offer as the team's next clue. In linear
// mode the choice is deterministic (the unique successor, or the lowest-ID
// start node). In random and collect-all modes the node is drawn uniformly
// from the candidate set; exclude names the currently offered node so a
// shuffle never re-offers the identical clue, unless it is the only
// candidate left. ok is false when the candidate set is exhausted.
func NextClue(mode GameMode, g *Graph, visited []string, exclude string, rng *rand.Rand) (next Node, ok bool) {
	cands := CandidateSet(mode, g, visited)
	if len(cands) == 0 {
		return Node{}, false
	}
	if mode == ModeLinear {
		return cands[0], true
	}
	if exclude != "" && len(cands) > 1 {
		filtered := cands[:0]
		for _, n := range cands {
			if n.ID != exclude {
				filtered = append(filtered, n)
			}
		}
		cands = filtered
	}
	return cands[rng.Intn(len(cands))], true
}

// CompletesGame reports whether scanning node finishes the hunt, assuming
// the scan itself is admissible. visited is the state before the scan.
func CompletesGame(mode GameMode, g *Graph, visited []string, node Node) bool {
	if !node.IsEnd {
		return false
	}
	if mode != ModeCollectAll {
		return true
	}
	seen := make(map[string]bool, len(visited)+1)
	for _, id := range visited {
		seen[id] = true
	}
	seen[node.ID] = true
	return allNonEndVisited(g, seen)
}

func startNodes(g *Graph) []Node {
	var out []Node
	for _, n := range g.Nodes() {
		if n.IsStart && n.Activated {
			out = append(out, n)
		}
	}
	return out
}

func allNonEndVisited(g *Graph, seen map[string]bool) bool {
	for _, n := range g.Nodes() {
		if n.Activated && !n.IsEnd && !seen[n.ID] {
			return false
		}
	}
	return true
}
