package cursor

import (
	"strconv"
	"strings"

	"tailtrack/internal/position"
	"tailtrack/internal/tailerr"
)

// parseRecords parses the cursor file text format: one or more records,
// each a block of "key: value" lines, blocks separated by a line holding
// exactly "###". A single record with no separator (the pre-rollback
// format) parses as one record, for backward compatibility.
func parseRecords(data []byte) ([]position.Record, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")

	var records []position.Record
	var block []string
	flush := func() error {
		if len(block) == 0 {
			return nil
		}
		rec, err := parseBlock(block)
		if err != nil {
			return err
		}
		records = append(records, rec)
		block = nil
		return nil
	}

	for _, line := range lines {
		if line == "###" {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		if line == "" {
			continue
		}
		block = append(block, line)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, tailerr.ErrCursorCorrupt
	}
	return records, nil
}

func parseBlock(lines []string) (position.Record, error) {
	var rec position.Record
	seen := make(map[string]bool, 5)

	for _, line := range lines {
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return position.Record{}, tailerr.ErrCursorCorrupt
		}
		key := line[:idx]
		val := strings.TrimLeft(line[idx+1:], " ")

		if seen[key] {
			return position.Record{}, tailerr.ErrCursorCorrupt
		}
		seen[key] = true

		switch key {
		case "logfile":
			rec.LogPath = val
		case "position":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil || n < 0 {
				return position.Record{}, tailerr.ErrCursorCorrupt
			}
			rec.Offset = &n
		case "inode":
			n, err := strconv.ParseUint(val, 10, 64)
			if err != nil {
				return position.Record{}, tailerr.ErrCursorCorrupt
			}
			rec.Inode = &n
		case "lastline":
			rec.LastLine = val
		case "committime":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return position.Record{}, tailerr.ErrCursorCorrupt
			}
			rec.CommitTime = &n
		default:
			return position.Record{}, tailerr.ErrCursorCorrupt
		}
	}

	if rec.Offset == nil {
		return position.Record{}, tailerr.ErrCursorCorrupt
	}
	return rec, nil
}

// sanitizeLastLine strips newline bytes so the value fits on a single
// "key: value" line (spec: "up to 255 bytes, no newline"). A caller
// computing the signature from raw file bytes may have already done this;
// stripping again here is a harmless no-op for those callers and a safety
// net for anyone else constructing a Record directly.
func sanitizeLastLine(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// formatRecord renders one record as a "key: value" block, field order
// matching the documented format.
func formatRecord(r position.Record) string {
	var b strings.Builder
	b.WriteString("logfile: ")
	b.WriteString(r.LogPath)
	b.WriteByte('\n')
	b.WriteString("position: ")
	b.WriteString(strconv.FormatInt(*r.Offset, 10))
	b.WriteByte('\n')
	if r.Inode != nil {
		b.WriteString("inode: ")
		b.WriteString(strconv.FormatUint(*r.Inode, 10))
		b.WriteByte('\n')
	}
	if r.LastLine != "" {
		b.WriteString("lastline: ")
		b.WriteString(sanitizeLastLine(r.LastLine))
		b.WriteByte('\n')
	}
	if r.CommitTime != nil {
		b.WriteString("committime: ")
		b.WriteString(strconv.FormatInt(*r.CommitTime, 10))
		b.WriteByte('\n')
	}
	return b.String()
}

// formatRecords renders a newest-first record list as the full cursor file
// body, "###" separating blocks.
func formatRecords(recs []position.Record) string {
	var b strings.Builder
	for i, r := range recs {
		if i > 0 {
			b.WriteString("###\n")
		}
		b.WriteString(formatRecord(r))
	}
	return b.String()
}
