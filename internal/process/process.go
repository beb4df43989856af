// Package process resolves executable and memory details for a process id.
//
// On Linux the per-process procfs entries are read directly: the exe symlink
// for the executable path and the first field of statm (total program size)
// for memory, reported in pages. When procfs cannot answer (non-Linux hosts, hidepid mounts,
// processes owned by other users) the lookup falls back to gopsutil.
package process

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	gopsprocess "github.com/shirou/gopsutil/v4/process"
)

// ErrInvalidPID is returned for process id 0.
var ErrInvalidPID = errors.New("invalid process id")

const deletedSuffix = " (deleted)"

// Details is what the resolver knows about one process.
type Details struct {
	Path     string
	ExecName string
	// Memory is the total program size in pages.
	Memory uint32
}

// Resolver looks up process details.
type Resolver struct {
	procRoot string
	fallback bool
	pageSize uint64
}

// NewResolver returns a resolver over /proc with the gopsutil fallback enabled.
func NewResolver() *Resolver {
	return &Resolver{
		procRoot: "/proc",
		fallback: true,
		pageSize: uint64(os.Getpagesize()),
	}
}

// NewProcfsResolver returns a resolver reading a procfs tree rooted at root,
// with no fallback.
func NewProcfsResolver(root string) *Resolver {
	return &Resolver{
		procRoot: root,
		pageSize: uint64(os.Getpagesize()),
	}
}

// Lookup resolves pid. Fields that could not be resolved are left empty and
// the returned error describes every step that failed; callers that degrade
// to empty values can use the Details regardless of the error.
func (r *Resolver) Lookup(pid uint32) (Details, error) {
	if pid == 0 {
		return Details{}, ErrInvalidPID
	}

	var (
		d    Details
		errs []error
	)

	path, pathErr := r.exePath(pid)
	if pathErr == nil {
		d.Path = path
		d.ExecName = filepath.Base(path)
	}

	mem, memErr := r.programPages(pid)
	if memErr == nil {
		d.Memory = mem
	}

	if pathErr == nil && memErr == nil {
		return d, nil
	}
	errs = append(errs, pathErr, memErr)

	if r.fallback {
		if err := r.fill(pid, &d, pathErr != nil, memErr != nil); err != nil {
			errs = append(errs, err)
		} else {
			errs = nil
		}
	}

	return d, errors.Join(errs...)
}

func (r *Resolver) exePath(pid uint32) (string, error) {
	link := filepath.Join(r.procRoot, strconv.FormatUint(uint64(pid), 10), "exe")
	target, err := os.Readlink(link)
	if err != nil {
		return "", fmt.Errorf("read exe link for pid %d: %w", pid, err)
	}
	return strings.TrimSuffix(target, deletedSuffix), nil
}

func (r *Resolver) programPages(pid uint32) (uint32, error) {
	statm := filepath.Join(r.procRoot, strconv.FormatUint(uint64(pid), 10), "statm")
	data, err := os.ReadFile(statm)
	if err != nil {
		return 0, fmt.Errorf("read statm for pid %d: %w", pid, err)
	}
	return parseStatm(data)
}

// parseStatm returns the first whitespace-delimited field of a statm record.
func parseStatm(data []byte) (uint32, error) {
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty statm record")
	}
	pages, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse statm field %q: %w", fields[0], err)
	}
	return uint32(pages), nil
}

// fill resolves the missing fields through gopsutil.
func (r *Resolver) fill(pid uint32, d *Details, needPath, needMemory bool) error {
	p, err := gopsprocess.NewProcess(int32(pid))
	if err != nil {
		return fmt.Errorf("open process %d: %w", pid, err)
	}

	var errs []error
	if needPath {
		exe, err := p.Exe()
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("exe for pid %d: %w", pid, err))
		case exe == "":
			errs = append(errs, fmt.Errorf("exe for pid %d: empty path", pid))
		default:
			d.Path = strings.TrimSuffix(exe, deletedSuffix)
			d.ExecName = filepath.Base(d.Path)
		}
	}
	if needMemory {
		mi, err := p.MemoryInfo()
		if err != nil {
			errs = append(errs, fmt.Errorf("memory info for pid %d: %w", pid, err))
		} else if mi != nil && r.pageSize > 0 {
			pages := mi.VMS / r.pageSize
			if pages > math.MaxUint32 {
				pages = math.MaxUint32
			}
			d.Memory = uint32(pages)
		}
	}
	return errors.Join(errs...)
}
