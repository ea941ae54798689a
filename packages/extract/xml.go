package extract

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	attrPrefix = "@"
	textKey    = "#text"
)

type xmlNode struct {
	name     string
	attrs    []xml.Attr
	children []*xmlNode
	text     strings.Builder
}

// XMLToJSON converts an XML document to ordered JSON text. Attributes become
// "@name" keys, mixed text becomes "#text", repeated siblings become arrays,
// and an empty element becomes null. Leaf values are always strings.
func XMLToJSON(body []byte) ([]byte, error) {
	root, err := parseXMLTree(body)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeKey(&buf, root.name)
	writeNode(&buf, root)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// XMLToMap converts an XML document to a nested map using the XMLToJSON rules.
func XMLToMap(body []byte) (map[string]any, error) {
	data, err := XMLToJSON(body)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseXMLTree(body []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	var stack []*xmlNode
	var root *xmlNode

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("response body is not valid XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{name: t.Name.Local, attrs: t.Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			} else if root != nil {
				return nil, errors.New("response body is not valid XML: multiple root elements")
			} else {
				root = node
			}
			stack = append(stack, node)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, errors.New("response body is not valid XML: no root element")
	}
	return root, nil
}

func writeNode(buf *bytes.Buffer, n *xmlNode) {
	text := strings.TrimSpace(n.text.String())
	if len(n.attrs) == 0 && len(n.children) == 0 {
		if text == "" {
			buf.WriteString("null")
			return
		}
		writeString(buf, text)
		return
	}

	buf.WriteByte('{')
	first := true
	sep := func() {
		if !first {
			buf.WriteByte(',')
		}
		first = false
	}

	for _, a := range n.attrs {
		if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
			continue
		}
		sep()
		writeKey(buf, attrPrefix+a.Name.Local)
		writeString(buf, a.Value)
	}

	// group children by name, keeping first-seen order
	var order []string
	groups := make(map[string][]*xmlNode)
	for _, c := range n.children {
		if _, seen := groups[c.name]; !seen {
			order = append(order, c.name)
		}
		groups[c.name] = append(groups[c.name], c)
	}
	for _, name := range order {
		sep()
		writeKey(buf, name)
		nodes := groups[name]
		if len(nodes) == 1 {
			writeNode(buf, nodes[0])
			continue
		}
		buf.WriteByte('[')
		for i, c := range nodes {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeNode(buf, c)
		}
		buf.WriteByte(']')
	}

	if text != "" {
		sep()
		writeKey(buf, textKey)
		writeString(buf, text)
	}
	buf.WriteByte('}')
}

func writeKey(buf *bytes.Buffer, key string) {
	writeString(buf, key)
	buf.WriteByte(':')
}

func writeString(buf *bytes.Buffer, s string) {
	data, _ := json.Marshal(s)
	buf.Write(data)
}
