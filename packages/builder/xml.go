package builder

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

// encodeXML is the inverse of extract.XMLToMap: "@name" keys become
// attributes, "#text" is character data and slices repeat the element.
// A map renders each key as an element in sorted order; any other value
// renders as escaped text.
func encodeXML(v any) (string, error) {
	var buf bytes.Buffer
	switch val := v.(type) {
	case map[string]any:
		for _, k := range sortedKeys(val) {
			if err := writeElement(&buf, k, val[k]); err != nil {
				return "", err
			}
		}
	default:
		if err := writeText(&buf, val); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func writeElement(buf *bytes.Buffer, name string, v any) error {
	if strings.HasPrefix(name, "@") || name == "#text" {
		return fmt.Errorf("attribute or text key %q outside an element", name)
	}

	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if err := writeElement(buf, name, item); err != nil {
				return err
			}
		}
		return nil
	case nil:
		fmt.Fprintf(buf, "<%s/>", name)
		return nil
	case map[string]any:
		buf.WriteString("<" + name)
		for _, k := range sortedKeys(val) {
			if !strings.HasPrefix(k, "@") {
				continue
			}
			buf.WriteString(" " + k[1:] + `="`)
			if err := writeText(buf, val[k]); err != nil {
				return err
			}
			buf.WriteString(`"`)
		}
		buf.WriteString(">")
		if text, ok := val["#text"]; ok {
			if err := writeText(buf, text); err != nil {
				return err
			}
		}
		for _, k := range sortedKeys(val) {
			if strings.HasPrefix(k, "@") || k == "#text" {
				continue
			}
			if err := writeElement(buf, k, val[k]); err != nil {
				return err
			}
		}
		fmt.Fprintf(buf, "</%s>", name)
		return nil
	default:
		buf.WriteString("<" + name + ">")
		if err := writeText(buf, val); err != nil {
			return err
		}
		fmt.Fprintf(buf, "</%s>", name)
		return nil
	}
}

func writeText(buf *bytes.Buffer, v any) error {
	if v == nil {
		return nil
	}
	return xml.EscapeText(buf, []byte(fmt.Sprint(v)))
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
