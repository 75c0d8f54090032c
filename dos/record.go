// Package dos implements the replicated, file-backed directory of service
// described in spec §4.2: one file per client, holding online status, peer
// IP, owned image names, and deferred push notifications.
package dos

import (
	"fmt"
	"strconv"
	"strings"
)

// PendingUpdate is a deferred AccessRightUpdate recorded against an offline
// client, delivered the next time that client signs in (spec §4.2).
type PendingUpdate struct {
	ImageName string
	NewViews  uint32
	PushedBy  string
}

// Record is the parsed form of one DOS/<client_id>.txt file (spec §4.2, §6).
type Record struct {
	Online  bool
	IP      string
	Images  []string
	Pending []PendingUpdate
}

const updatePrefix = "UPDATE:"

// encode renders a Record back to the on-disk line format.
func (r Record) encode() []byte {
	var b strings.Builder

	status := "0"
	if r.Online {
		status = "1"
	}
	fmt.Fprintf(&b, "%s,%s\n", status, r.IP)

	if len(r.Images) > 0 {
		b.WriteString(strings.Join(r.Images, ","))
		b.WriteByte('\n')
	}

	for _, u := range r.Pending {
		fmt.Fprintf(&b, "%s%s,%d,%s\n", updatePrefix, u.ImageName, u.NewViews, u.PushedBy)
	}

	return []byte(b.String())
}

// parseRecord decodes the on-disk line format back into a Record.
func parseRecord(data []byte) (Record, error) {
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return Record{}, fmt.Errorf("dos: empty record")
	}

	statusIP := strings.SplitN(lines[0], ",", 2)
	if len(statusIP) != 2 {
		return Record{}, fmt.Errorf("dos: malformed status line %q", lines[0])
	}

	rec := Record{IP: statusIP[1]}
	switch statusIP[0] {
	case "1":
		rec.Online = true
	case "0":
		rec.Online = false
	default:
		return Record{}, fmt.Errorf("dos: unknown status %q", statusIP[0])
	}

	rest := lines[1:]
	if len(rest) > 0 && !strings.HasPrefix(rest[0], updatePrefix) {
		if rest[0] != "" {
			rec.Images = strings.Split(rest[0], ",")
		}
		rest = rest[1:]
	}

	for _, line := range rest {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, updatePrefix) {
			return Record{}, fmt.Errorf("dos: expected UPDATE line, got %q", line)
		}
		fields := strings.SplitN(strings.TrimPrefix(line, updatePrefix), ",", 3)
		if len(fields) != 3 {
			return Record{}, fmt.Errorf("dos: malformed UPDATE line %q", line)
		}
		views, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return Record{}, fmt.Errorf("dos: bad view count in %q: %w", line, err)
		}
		rec.Pending = append(rec.Pending, PendingUpdate{
			ImageName: fields[0],
			NewViews:  uint32(views),
			PushedBy:  fields[2],
		})
	}

	return rec, nil
}
