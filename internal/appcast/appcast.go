// Package appcast extracts version information from Sparkle-style update
// feeds. It carries item metadata but does not act on it: download, install
// and signature checks belong to the external update client.
package appcast

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	apperrors "updatekit/internal/errors"
	"updatekit/internal/version"
)

// SparkleNamespace is the XML namespace URI bound to the sparkle: prefix.
const SparkleNamespace = "http://www.andymatuschak.org/xml-namespaces/sparkle"

// Sentinel errors for parse failures. Returned errors wrap one of these inside
// an apperrors.Error so both errors.Is and apperrors.CodeOf work.
var (
	ErrMalformed     = errors.New("appcast is not well-formed XML")
	ErrMissingFields = errors.New("appcast lacks sparkle:shortVersionString or sparkle:version")
)

// Enclosure is the downloadable payload attached to an item.
type Enclosure struct {
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Length  int64  `json:"length,omitempty" yaml:"length,omitempty"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	Display string `json:"display,omitempty" yaml:"display,omitempty"`
	Build   string `json:"build,omitempty" yaml:"build,omitempty"`
}

// Item is one release entry of a feed.
type Item struct {
	Title                string    `json:"title,omitempty" yaml:"title,omitempty"`
	PubDate              string    `json:"pub_date,omitempty" yaml:"pub_date,omitempty"`
	Description          string    `json:"description,omitempty" yaml:"description,omitempty"`
	ReleaseNotesLink     string    `json:"release_notes_link,omitempty" yaml:"release_notes_link,omitempty"`
	Display              string    `json:"display,omitempty" yaml:"display,omitempty"`
	Build                string    `json:"build,omitempty" yaml:"build,omitempty"`
	MinimumSystemVersion string    `json:"minimum_system_version,omitempty" yaml:"minimum_system_version,omitempty"`
	Critical             bool      `json:"critical,omitempty" yaml:"critical,omitempty"`
	Enclosure            Enclosure `json:"enclosure" yaml:"enclosure"`
}

// Identifier returns the item's version, preferring element text over the
// enclosure attributes.
func (it Item) Identifier() version.Identifier {
	display, build := it.Display, it.Build
	if display == "" {
		display = it.Enclosure.Display
	}
	if build == "" {
		build = it.Enclosure.Build
	}
	return version.New(display, build)
}

// VersionFull renders "<display>-<build>" for log lines.
func (it Item) VersionFull() string {
	return it.Identifier().Full()
}

// Published parses PubDate using the RSS date layouts.
func (it Item) Published() (time.Time, bool) {
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339} {
		if t, err := time.Parse(layout, strings.TrimSpace(it.PubDate)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Feed is a parsed appcast document.
type Feed struct {
	Title string `json:"title,omitempty" yaml:"title,omitempty"`
	Items []Item `json:"items" yaml:"items"`

	// scan holds the last display and build values seen anywhere in the
	// document, for feeds that split them across containers.
	scan version.Identifier
}

// Latest returns the newest item by build ordering among the items that
// carry both a display version and a build.
func (f *Feed) Latest() (Item, bool) {
	var (
		best  Item
		found bool
	)
	for _, it := range f.Items {
		id := it.Identifier()
		if !id.Complete() {
			continue
		}
		if !found || version.Compare(best.Identifier().Build, id.Build) < 0 {
			best, found = it, true
		}
	}
	return best, found
}

// Version returns the version the feed advertises: the latest complete item,
// or failing that the last display and build values found anywhere in the
// document.
func (f *Feed) Version() (version.Identifier, bool) {
	if it, ok := f.Latest(); ok {
		return it.Identifier(), true
	}
	if f.scan.Complete() {
		return f.scan, true
	}
	return version.Identifier{}, false
}

// ParseVersion extracts the advertised (display, build) pair from data.
func ParseVersion(data []byte) (version.Identifier, error) {
	feed, err := Parse(data)
	if err != nil {
		return version.Identifier{}, err
	}
	id, ok := feed.Version()
	if !ok {
		return version.Identifier{}, apperrors.New(apperrors.CodeFeedMissingFields, "parse appcast", ErrMissingFields)
	}
	return id, nil
}

// Parse decodes an appcast document. A document without any version fields
// parses successfully; callers decide whether that is an error.
func Parse(data []byte) (*Feed, error) {
	p := &parser{
		dec:  xml.NewDecoder(bytes.NewReader(data)),
		feed: &Feed{},
	}
	p.dec.Entity = xml.HTMLEntity
	// Feeds may declare a legacy encoding such as ISO-8859-1.
	p.dec.CharsetReader = charset.NewReaderLabel
	if err := p.run(); err != nil {
		return nil, apperrors.New(apperrors.CodeFeedMalformed, "parse appcast", fmt.Errorf("%w: %v", ErrMalformed, err))
	}
	return p.feed, nil
}

type parser struct {
	dec  *xml.Decoder
	feed *Feed

	sawRoot bool
	item    *Item
	nested  int
	loose   Item
}

func (p *parser) run() error {
	for {
		tok, err := p.dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			p.sawRoot = true
			if err := p.start(t); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name.Local != "item" || isSparkle(t.Name) || p.item == nil {
				continue
			}
			if p.nested > 0 {
				p.nested--
				continue
			}
			p.feed.Items = append(p.feed.Items, *p.item)
			p.item = nil
		}
	}

	if !p.sawRoot {
		return errors.New("no root element")
	}
	if !p.loose.Identifier().IsZero() {
		p.feed.Items = append(p.feed.Items, p.loose)
	}
	return nil
}

func (p *parser) start(t xml.StartElement) error {
	if t.Name.Local == "item" && !isSparkle(t.Name) {
		if p.item == nil {
			p.item = &Item{}
		} else {
			p.nested++
		}
		return nil
	}

	target := &p.loose
	if p.item != nil {
		target = p.item
	}

	if isSparkle(t.Name) {
		switch t.Name.Local {
		case "version", "shortVersionString", "releaseNotesLink", "minimumSystemVersion":
			text, err := p.text(t)
			if err != nil {
				return err
			}
			p.setSparkleField(target, t.Name.Local, text)
			return nil
		case "criticalUpdate":
			target.Critical = true
		}
		return nil
	}

	switch t.Name.Local {
	case "enclosure":
		p.enclosure(target, t.Attr)
	case "title", "pubDate", "description":
		text, err := p.text(t)
		if err != nil {
			return err
		}
		switch {
		case t.Name.Local == "title" && p.item == nil:
			if p.feed.Title == "" {
				p.feed.Title = text
			}
		case t.Name.Local == "title":
			target.Title = text
		case t.Name.Local == "pubDate":
			target.PubDate = text
		default:
			target.Description = text
		}
		return nil
	}
	return nil
}

// text consumes the element and returns its trimmed character data.
func (p *parser) text(t xml.StartElement) (string, error) {
	var s string
	if err := p.dec.DecodeElement(&s, &t); err != nil {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func (p *parser) setSparkleField(target *Item, local, text string) {
	switch local {
	case "version":
		target.Build = text
		if text != "" {
			p.feed.scan.Build = text
		}
	case "shortVersionString":
		target.Display = text
		if text != "" {
			p.feed.scan.Display = text
		}
	case "releaseNotesLink":
		target.ReleaseNotesLink = text
	case "minimumSystemVersion":
		target.MinimumSystemVersion = text
	}
}

func (p *parser) enclosure(target *Item, attrs []xml.Attr) {
	for _, a := range attrs {
		val := strings.TrimSpace(a.Value)
		if isSparkle(a.Name) {
			switch a.Name.Local {
			case "version":
				target.Enclosure.Build = val
				if val != "" {
					p.feed.scan.Build = val
				}
			case "shortVersionString":
				target.Enclosure.Display = val
				if val != "" {
					p.feed.scan.Display = val
				}
			}
			continue
		}
		switch a.Name.Local {
		case "url":
			target.Enclosure.URL = val
		case "type":
			target.Enclosure.Type = val
		case "length":
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				target.Enclosure.Length = n
			}
		}
	}
}

// isSparkle matches both a declared namespace and an undeclared sparkle:
// prefix, which encoding/xml reports as the namespace "sparkle".
func isSparkle(n xml.Name) bool {
	return n.Space == SparkleNamespace || n.Space == "sparkle"
}
