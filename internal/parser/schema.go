package parser

import "encoding/json"

// dynFile is the subset of the Dynamo 2.x JSON format the indexer reads.
// Node and connector entries are decoded individually so that one malformed
// entry does not reject the whole file.
type dynFile struct {
	Name        string            `json:"Name"`
	Description string            `json:"Description"`
	Category    string            `json:"Category"`
	UUID        string            `json:"Uuid"`
	Author      string            `json:"Author"`
	Version     string            `json:"Version"`
	Nodes       []json.RawMessage `json:"Nodes"`
	Connectors  []json.RawMessage `json:"Connectors"`
}

type dynNode struct {
	ConcreteType string `json:"ConcreteType"`
	NodeType     string `json:"NodeType"`
	Name         string `json:"Name"`
	ID           string `json:"Id"`
}

// typeName resolves the node-type identifier used for frequency tallies.
func (n *dynNode) typeName() string {
	switch {
	case n.ConcreteType != "":
		return n.ConcreteType
	case n.NodeType != "":
		return n.NodeType
	default:
		return n.Name
	}
}
