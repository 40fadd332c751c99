// Package mmlfile imports the sectioned .mml files written by 3MLE.
package mmlfile

import (
	"bytes"
	"compress/bzip2"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/jsphweid/mmlcore/constants"
	"github.com/jsphweid/mmlcore/mml"
	"github.com/jsphweid/mmlcore/model"
	"github.com/jsphweid/mmlcore/score"
	"github.com/jsphweid/mmlcore/ticktable"
	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

const (
	DefaultEncoding = "Shift_JIS"
	extensionName   = "[3MLE EXTENSION]"
	settingsName    = "[Settings]"
	// channels per imported track
	trackLimit = 3
	// largest plain length accepted per byte of extension block
	maxInflation = 64
)

var channelName = regexp.MustCompile(`^\[Channel[0-9]*\]$`)

type section struct {
	name     string
	contents string
}

// extTrack is one track record of the extension block. Consecutive
// channels with the same instrument, group and panpot share a track.
type extTrack struct {
	instrument  int
	group       int
	panpot      int
	name        string
	startMarker int
	channels    int
}

type importer struct {
	table      *ticktable.Table
	encoding   string
	resolution int
	score      *score.Score
	// markers in file order, which start markers index from 1
	markers  []model.Marker
	channels []string
	tracks   []*extTrack
}

func ParseFile(table *ticktable.Table, path string) (*score.Score, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening mml file")
	}
	defer f.Close()
	return Parse(table, f)
}

// Parse reads a 3MLE file. Text is decoded as Shift_JIS unless the
// [Settings] section names another encoding.
func Parse(table *ticktable.Table, r io.Reader) (*score.Score, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading mml file")
	}
	im := &importer{
		table:      table,
		encoding:   DefaultEncoding,
		resolution: constants.TPQN,
		score:      score.New(table),
	}

	text, err := decode(raw, japanese.ShiftJIS)
	if err != nil {
		return nil, err
	}
	sections := splitSections(text)
	if name := settingValue(sections, "Encoding="); name != "" && !strings.EqualFold(name, DefaultEncoding) {
		enc, err := htmlindex.Get(name)
		if err != nil {
			return nil, errors.Wrapf(model.ErrParse, "unknown encoding %q", name)
		}
		if text, err = decode(raw, enc); err != nil {
			return nil, err
		}
		sections = splitSections(text)
		im.encoding = name
	}
	if len(sections) == 0 {
		return nil, errors.Wrap(model.ErrParse, "no contents")
	}

	if err := im.parseSections(sections); err != nil {
		return nil, err
	}
	if len(im.tracks) == 0 {
		return nil, errors.Wrap(model.ErrParse, "no track")
	}
	if err := im.createTracks(); err != nil {
		return nil, err
	}
	im.setStartPositions()
	return im.score, nil
}

func decode(raw []byte, enc encoding.Encoding) (string, error) {
	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", errors.Wrap(err, "decoding mml file")
	}
	return string(out), nil
}

func splitSections(text string) []section {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var out []section
	var cur *section
	var lines []string
	flush := func() {
		if cur != nil {
			cur.contents = strings.Join(lines, "\n")
			out = append(out, *cur)
		}
		lines = nil
	}
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			flush()
			cur = &section{name: trimmed}
			continue
		}
		if cur != nil {
			lines = append(lines, line)
		}
	}
	flush()
	return out
}

func settingValue(sections []section, key string) string {
	for _, s := range sections {
		if s.name != settingsName {
			continue
		}
		for _, line := range strings.Split(s.contents, "\n") {
			if strings.HasPrefix(line, key) {
				return strings.TrimSpace(line[len(key):])
			}
		}
	}
	return ""
}

var (
	lineComment  = regexp.MustCompile(`//.*\n`)
	blockComment = regexp.MustCompile(`/\*/?([^/]|[^*]/)*\*/`)
	space        = regexp.MustCompile(`[ \t\n]`)
)

// ToMMLText strips comments and whitespace from a channel section.
func ToMMLText(text string) string {
	s := strings.ReplaceAll(text, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = lineComment.ReplaceAllString(s+"\n", "\n")
	s = blockComment.ReplaceAllString(s, "")
	return space.ReplaceAllString(s, "")
}

func (im *importer) parseSections(sections []section) error {
	for _, s := range sections {
		switch {
		case s.name == extensionName:
			tracks, err := im.parseExtension(s.contents)
			if err != nil {
				return err
			}
			im.tracks = tracks
		case channelName.MatchString(s.name):
			im.channels = append(im.channels, ToMMLText(s.contents))
		case s.name == settingsName:
			im.score.Title = settingValue([]section{s}, "Title=")
			im.score.Author = settingValue([]section{s}, "Source=")
		}
	}
	return nil
}

func (im *importer) createTracks() error {
	for i, et := range im.tracks {
		if len(im.channels) < et.channels {
			return errors.Wrapf(model.ErrParse, "track %d needs %d channels, %d left", i+1, et.channels, len(im.channels))
		}
		track := score.NewTrack(im.table, et.name)
		for j := 0; j < et.channels; j++ {
			tl, err := mml.Parse(im.table, im.channels[j])
			if err != nil {
				return errors.Wrapf(err, "track %q", et.name)
			}
			track.Parts[score.Melody+j] = tl
		}
		im.channels = im.channels[et.channels:]
		// 3MLE numbers instruments from 1
		track.Program = et.instrument - 1
		if track.Program < 0 || track.Program > 127 {
			track.Program = 0
		}
		im.score.AddTrack(track)
	}
	return nil
}

// setStartPositions shifts each track that starts at a marker.
func (im *importer) setStartPositions() {
	markers := im.markers
	if len(markers) == 0 {
		return
	}
	for i, et := range im.tracks {
		if et.startMarker <= 0 || et.startMarker > len(markers) {
			continue
		}
		offset := markers[et.startMarker-1].TickOffset
		for _, p := range im.score.Tracks()[i].Parts {
			if p.TotalTickLength() > 0 {
				p.InsertTick(0, offset)
			}
		}
	}
}

func (im *importer) parseExtension(contents string) ([]*extTrack, error) {
	var sb strings.Builder
	var sum uint64
	for _, line := range strings.Split(contents, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "d="):
			sb.WriteString(line[2:])
		case strings.HasPrefix(line, "c="):
			v, err := strconv.ParseUint(line[2:], 10, 32)
			if err != nil {
				return nil, errors.Wrapf(model.ErrParse, "checksum %q", line)
			}
			sum = v
		}
	}
	data, err := decodeExtension(sb.String(), uint32(sum))
	if err != nil {
		return nil, err
	}
	return im.parseData(data)
}

// decodeExtension checks the CRC32 of the base64 text, then inflates the
// bzip2 stream that follows a 12 byte header holding the plain length.
func decodeExtension(d string, sum uint32) ([]byte, error) {
	if got := crc32.ChecksumIEEE([]byte(d)); got != sum {
		return nil, errors.Wrapf(model.ErrParse, "invalid c=%d <> %d", sum, got)
	}
	b, err := base64.StdEncoding.DecodeString(d)
	if err != nil {
		return nil, errors.Wrap(model.ErrParse, err.Error())
	}
	if len(b) < 12 {
		return nil, errors.Wrap(model.ErrParse, "short extension block")
	}
	n := int(int32(binary.LittleEndian.Uint32(b[:4])))
	if n < 0 || n > maxInflation*len(b) {
		return nil, errors.Wrapf(model.ErrParse, "extension length %d", n)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(bzip2.NewReader(bytes.NewReader(b[12:])), data); err != nil {
		return nil, errors.Wrap(model.ErrParse, err.Error())
	}
	return data, nil
}

// byteReader reads the extension records, treating reads past the end as
// zero like the format's writer expects.
type byteReader struct {
	*bytes.Reader
}

func (r byteReader) skip(n int64) {
	_, _ = r.Seek(n, io.SeekCurrent)
}

func (r byteReader) u8() int {
	b, err := r.ReadByte()
	if err != nil {
		return 0
	}
	return int(b)
}

func (r byteReader) u16() int {
	var b [2]byte
	_, _ = io.ReadFull(r, b[:])
	return int(int16(binary.LittleEndian.Uint16(b[:])))
}

func (r byteReader) i32() int {
	var b [4]byte
	_, _ = io.ReadFull(r, b[:])
	return int(int32(binary.LittleEndian.Uint32(b[:])))
}

func (r byteReader) cstring() []byte {
	var out []byte
	for {
		b, err := r.ReadByte()
		if err != nil || b == 0 {
			return out
		}
		out = append(out, b)
	}
}

func (im *importer) parseData(data []byte) ([]*extTrack, error) {
	r := byteReader{bytes.NewReader(data)}
	var tracks []*extTrack
	hb := 0
	for {
		c, err := r.ReadByte()
		if err != nil {
			break
		}
		b := int(c)
		switch {
		case hb == 0x12 && b == 0x10:
			im.parseHeader(r)
		case hb == 0x02 && b == 0x1c:
			t, err := im.parseTrack(r)
			if err != nil {
				return nil, err
			}
			if n := len(tracks); n > 0 && tracks[n-1].sameTrack(t) {
				tracks[n-1].channels++
			} else {
				tracks = append(tracks, t)
			}
		case hb == 0x09 && b > 0x00 && b < 0x20:
			if err := im.parseMarker(r); err != nil {
				return nil, err
			}
		}
		hb = b
	}
	return tracks, nil
}

func (t *extTrack) sameTrack(o *extTrack) bool {
	return t.group == o.group && t.instrument == o.instrument && t.panpot == o.panpot && t.channels < trackLimit
}

func (im *importer) parseHeader(r byteReader) {
	r.skip(24)
	if res := r.u16(); res > 0 {
		im.resolution = res
	}
	r.skip(11)
	r.skip(int64(r.i32()))
}

func (im *importer) parseTrack(r byteReader) (*extTrack, error) {
	t := &extTrack{channels: 1}
	r.skip(3)
	r.u8()    // track number
	r.skip(1) // volume
	t.panpot = r.u8()
	r.skip(5)
	t.startMarker = r.u8()
	r.skip(7)
	t.instrument = r.u8()
	r.skip(3)
	t.group = r.u8()
	r.skip(13)
	name, err := im.decodeString(r.cstring())
	if err != nil {
		return nil, err
	}
	t.name = name
	return t, nil
}

func (im *importer) parseMarker(r byteReader) error {
	r.skip(7)
	tick := im.convertTick(r.i32())
	r.skip(4)
	name, err := im.decodeString(r.cstring())
	if err != nil {
		return err
	}
	m := model.Marker{Name: name, TickOffset: tick}
	im.markers = append(im.markers, m)
	im.score.AddMarker(m)
	return nil
}

func (im *importer) convertTick(tick int) int {
	if im.resolution == constants.TPQN {
		return tick
	}
	return tick * constants.TPQN / im.resolution
}

func (im *importer) decodeString(b []byte) (string, error) {
	enc, err := htmlindex.Get(im.encoding)
	if err != nil {
		enc = japanese.ShiftJIS
	}
	return decode(b, enc)
}
