package codec

import (
	"encoding/xml"
	"io"

	"github.com/nsdconnect/crawler/docmodel"
)

// XML is the canonical on-disk document codec named in spec §6
// ("<docId>.xml"), built on the standard library's encoding/xml.
var XML Codec = xmlCodec{}

type xmlCodec struct{}

func (xmlCodec) Ext() string { return ".xml" }

type xmlRoot struct {
	XMLName xml.Name `xml:"document"`
	wireDoc
}

func (xmlCodec) Encode(w io.Writer, d *docmodel.Document) error {
	root := xmlRoot{wireDoc: wireOf(d)}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return enc.Encode(root)
}

func (xmlCodec) Decode(r io.Reader) (*docmodel.Document, error) {
	var root xmlRoot
	if err := xml.NewDecoder(r).Decode(&root); err != nil {
		return nil, err
	}
	return root.wireDoc.toDocument(), nil
}
