package schema

import (
	"encoding/xml"
	"sort"
	"strconv"
	"strings"
)

// Fingerprint serializes a declared table into its canonical form. Only the
// attributes the declaration spells out are written, sorted by name; key
// parts, families and columns keep declaration order. Equal declarations
// always produce byte-identical output.
func Fingerprint(t Table) string {
	var b strings.Builder

	attrs := declaredTableAttributes(t)
	attrs = append(attrs, Attribute{"name", t.Name})
	writeOpen(&b, "table", attrs, false)

	b.WriteString("<key>")
	for _, kp := range t.Key {
		writeOpen(&b, "keyPart", []Attribute{
			{"inverted", strconv.FormatBool(kp.Inverted)},
			{"length", strconv.Itoa(kp.Length)},
			{"name", kp.Name},
			{"type", kp.Type},
		}, true)
	}
	b.WriteString("</key>")

	b.WriteString("<columnFamilies>")
	for _, f := range t.Families {
		fattrs := declaredFamilyAttributes(f.FamilyAttributes)
		fattrs = append(fattrs, Attribute{"name", f.Name})
		writeOpen(&b, "columnFamily", fattrs, false)
		for _, c := range f.Columns {
			writeOpen(&b, "column", []Attribute{{"name", c.Name}, {"type", c.Type}}, true)
		}
		b.WriteString("</columnFamily>")
	}
	b.WriteString("</columnFamilies>")

	b.WriteString("</table>")
	return b.String()
}

func writeOpen(b *strings.Builder, element string, attrs []Attribute, selfClose bool) {
	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Name < attrs[j].Name })
	b.WriteByte('<')
	b.WriteString(element)
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		_ = xml.EscapeText(b, []byte(a.Value))
		b.WriteByte('"')
	}
	if selfClose {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
}

func declaredTableAttributes(t Table) []Attribute {
	var attrs []Attribute
	addBool(&attrs, "deferredLogFlush", t.DeferredLogFlush)
	addBool(&attrs, "isMeta", t.IsMeta)
	addBool(&attrs, "isRoot", t.IsRoot)
	addSize(&attrs, "maxFileSizeMB", t.MaxFileSizeMB)
	addSize(&attrs, "memStoreFlushSizeMB", t.MemStoreFlushSizeMB)
	if t.Owner != nil {
		attrs = append(attrs, Attribute{"owner", *t.Owner})
	}
	addInt(&attrs, "preSplitRegions", t.PreSplitRegions)
	addBool(&attrs, "readOnly", t.ReadOnly)
	return attrs
}

func declaredFamilyAttributes(f FamilyAttributes) []Attribute {
	var attrs []Attribute
	addBool(&attrs, "blockCache", f.BlockCache)
	addSize(&attrs, "blockSizeKB", f.BlockSizeKB)
	addString(&attrs, "bloomFilter", f.BloomFilter)
	addString(&attrs, "compression", f.Compression)
	addString(&attrs, "dataBlockEncoding", f.DataBlockEncoding)
	addBool(&attrs, "encodeOnDisk", f.EncodeOnDisk)
	addBool(&attrs, "inMemory", f.InMemory)
	addBool(&attrs, "keepDeletedCells", f.KeepDeletedCells)
	addInt(&attrs, "maxVersions", f.MaxVersions)
	addInt(&attrs, "minVersions", f.MinVersions)
	addInt(&attrs, "replicationScope", f.ReplicationScope)
	if f.TTLSeconds != nil {
		attrs = append(attrs, Attribute{"ttlSeconds", f.TTLSeconds.String()})
	}
	return attrs
}

func addBool(attrs *[]Attribute, name string, v *bool) {
	if v != nil {
		*attrs = append(*attrs, Attribute{name, strconv.FormatBool(*v)})
	}
}

func addInt(attrs *[]Attribute, name string, v *int) {
	if v != nil {
		*attrs = append(*attrs, Attribute{name, strconv.Itoa(*v)})
	}
}

func addSize(attrs *[]Attribute, name string, v *float64) {
	if v != nil {
		*attrs = append(*attrs, Attribute{name, strconv.FormatFloat(*v, 'f', -1, 64)})
	}
}

func addString(attrs *[]Attribute, name string, v *string) {
	if v != nil {
		*attrs = append(*attrs, Attribute{name, *v})
	}
}
