package extract

import (
	"encoding/xml"
	"io"
	"strings"
)

// skippedElements hold drawing content rather than run text. Text boxes live
// in w:txbxContent, and Word writes each one twice inside mc:AlternateContent
// (mc:Choice and mc:Fallback).
var skippedElements = map[string]bool{
	"txbxContent": true,
	"Fallback":    true,
}

// readParagraphs returns the run text of each w:p element in document order,
// including paragraphs inside tables. Text box content is left out.
func readParagraphs(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)
	var (
		paragraphs []string
		current    strings.Builder
		depth      int
		skip       int
		inText     bool
	)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if skip > 0 || skippedElements[t.Name.Local] {
				skip++
				continue
			}
			switch t.Name.Local {
			case "p":
				if depth == 0 {
					current.Reset()
				}
				depth++
			case "t":
				inText = depth > 0
			case "tab":
				if depth > 0 {
					current.WriteByte('\t')
				}
			case "br", "cr":
				if depth > 0 {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if skip > 0 {
				skip--
				continue
			}
			switch t.Name.Local {
			case "p":
				if depth > 0 {
					depth--
					if depth == 0 {
						paragraphs = append(paragraphs, current.String())
					}
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && skip == 0 {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
