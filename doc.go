// Package itemx lets scraped-data structs be handled uniformly by a collection
// pipeline, with code generation doing the boilerplate.
//
// Annotate a struct with the itemx:item directive and run itemx-gen:
//
//	//go:generate itemx-gen generate .
//
//	//itemx:item
//	type Article struct {
//	    Title   string `json:"title"`
//	    Content string `json:"content"`
//	}
//
// The generator writes article_item.go next to the source file. It derives
// four capabilities for Article:
//
//   - Serialize(c itemx.Codec) ([]byte, error)
//   - (*Article) Deserialize(c itemx.Codec, data []byte) error
//   - Clone() Article, a structural deep copy
//   - GoString() string, a deterministic debug dump used by %#v
//
// and implements the Item interface on top of them:
//
//	var it itemx.Item = Article{Title: "A", Content: "B"}
//	it.ToValue().String()             // {"content":"B","title":"A"}
//	dup := it.BoxClone()              // independent deep copy
//	a, ok := itemx.As[Article](dup)  // concrete type recovered
//
// # Structured values
//
// Value is the JSON-shaped intermediate form returned by ToValue. FromValue
// is its inverse. Generated ToValue methods panic with a *ConversionError if
// the item cannot be represented; call ToValue on the package when an error
// is preferred.
//
// # Registry
//
// Generated code registers each non-generic item type at init time, so an
// item can be revived from its structured value by name:
//
//	it, err := itemx.Revive(itemx.NameOf[Article](), v)
//
// # Codecs
//
// JSON, MsgPack and YAML implement Codec. CodecFor resolves a codec by name.
package itemx
