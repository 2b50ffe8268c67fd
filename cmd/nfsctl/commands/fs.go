package commands

import (
	"fmt"
	"io"
	"path"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfsclient/internal/cli/output"
	"github.com/marmos91/nfsclient/internal/protocol/nfs/types"
)

var lsLong bool

var lsCmd = &cobra.Command{
	Use:   "ls <export> [path]",
	Short: "List a directory",
	Long: `List the entries of a directory inside an export (NFS READDIR).

The export is mounted first if needed. Paths are relative to the export
root.

Examples:
  # List the export root
  nfsctl ls /export

  # Long listing of a subdirectory
  nfsctl ls -l /export projects/2024`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLs,
}

var statCmd = &cobra.Command{
	Use:   "stat <export> [path]",
	Short: "Show file attributes",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runStat,
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <export> <path>",
	Short: "Resolve a path to its file handle",
	Args:  cobra.ExactArgs(2),
	RunE:  runLookup,
}

var chmodCmd = &cobra.Command{
	Use:   "chmod <mode> <export> <path>",
	Short: "Change permission bits",
	Long: `Change the permission bits of a file (NFS SETATTR). mode is octal.

Examples:
  nfsctl chmod 0644 /export notes.txt`,
	Args: cobra.ExactArgs(3),
	RunE: runChmod,
}

func init() {
	lsCmd.Flags().BoolVarP(&lsLong, "long", "l", false, "show type, mode, owner and size of each entry")
}

type entryView struct {
	Name   string `json:"name" yaml:"name"`
	FileID uint32 `json:"fileid" yaml:"fileid"`
	Type   string `json:"type,omitempty" yaml:"type,omitempty"`
	Mode   string `json:"mode,omitempty" yaml:"mode,omitempty"`
	UID    uint32 `json:"uid,omitempty" yaml:"uid,omitempty"`
	GID    uint32 `json:"gid,omitempty" yaml:"gid,omitempty"`
	Size   uint32 `json:"size,omitempty" yaml:"size,omitempty"`
}

// entryList is a directory listing for table rendering.
type entryList struct {
	long    bool
	entries []entryView
}

// Headers implements TableRenderer.
func (l entryList) Headers() []string {
	if l.long {
		return []string{"MODE", "TYPE", "UID", "GID", "SIZE", "NAME"}
	}
	return []string{"FILEID", "NAME"}
}

// Rows implements TableRenderer.
func (l entryList) Rows() [][]string {
	rows := make([][]string, 0, len(l.entries))
	for _, e := range l.entries {
		if l.long {
			rows = append(rows, []string{
				e.Mode, e.Type,
				strconv.FormatUint(uint64(e.UID), 10),
				strconv.FormatUint(uint64(e.GID), 10),
				strconv.FormatUint(uint64(e.Size), 10),
				e.Name,
			})
			continue
		}
		rows = append(rows, []string{strconv.FormatUint(uint64(e.FileID), 10), e.Name})
	}
	return rows
}

func runLs(cmd *cobra.Command, args []string) error {
	s, _, err := connect(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	ctx := cmd.Context()
	export, dir := args[0], pathArg(args, 1)

	entries, err := s.List(ctx, export, dir)
	if err != nil {
		return err
	}

	list := entryList{long: lsLong, entries: make([]entryView, 0, len(entries))}
	for _, e := range entries {
		v := entryView{Name: e.Name, FileID: e.FileID}
		if lsLong && e.Name != "." && e.Name != ".." {
			attr, err := s.Stat(ctx, export, path.Join(dir, e.Name))
			if err != nil {
				return err
			}
			v.Type = attr.Type.String()
			v.Mode = formatMode(attr.Mode)
			v.UID, v.GID, v.Size = attr.UID, attr.GID, attr.Size
		}
		list.entries = append(list.entries, v)
	}

	p, err := newPrinter(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if p.Format() != output.FormatTable {
		return p.Print(list.entries)
	}
	if len(list.entries) == 0 {
		p.Printf("Empty directory.\n")
		return nil
	}
	return p.Print(list)
}

type attrView struct {
	Type      string    `json:"type" yaml:"type"`
	Mode      string    `json:"mode" yaml:"mode"`
	Nlink     uint32    `json:"nlink" yaml:"nlink"`
	UID       uint32    `json:"uid" yaml:"uid"`
	GID       uint32    `json:"gid" yaml:"gid"`
	Size      uint32    `json:"size" yaml:"size"`
	BlockSize uint32    `json:"blocksize" yaml:"blocksize"`
	Rdev      uint32    `json:"rdev" yaml:"rdev"`
	Blocks    uint32    `json:"blocks" yaml:"blocks"`
	FSID      uint32    `json:"fsid" yaml:"fsid"`
	FileID    uint32    `json:"fileid" yaml:"fileid"`
	Atime     time.Time `json:"atime" yaml:"atime"`
	Mtime     time.Time `json:"mtime" yaml:"mtime"`
	Ctime     time.Time `json:"ctime" yaml:"ctime"`
}

func toAttrView(attr *types.FileAttr) attrView {
	return attrView{
		Type:      attr.Type.String(),
		Mode:      formatMode(attr.Mode),
		Nlink:     attr.Nlink,
		UID:       attr.UID,
		GID:       attr.GID,
		Size:      attr.Size,
		BlockSize: attr.BlockSize,
		Rdev:      attr.Rdev,
		Blocks:    attr.Blocks,
		FSID:      attr.FSID,
		FileID:    attr.FileID,
		Atime:     attr.Atime.Time(),
		Mtime:     attr.Mtime.Time(),
		Ctime:     attr.Ctime.Time(),
	}
}

func runStat(cmd *cobra.Command, args []string) error {
	s, _, err := connect(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	attr, err := s.Stat(cmd.Context(), args[0], pathArg(args, 1))
	if err != nil {
		return err
	}
	return printAttr(cmd.OutOrStdout(), attr)
}

func printAttr(w io.Writer, attr *types.FileAttr) error {
	p, err := newPrinter(w)
	if err != nil {
		return err
	}

	v := toAttrView(attr)
	if p.Format() != output.FormatTable {
		return p.Print(v)
	}
	return output.PrintKeyValues(w, [][2]string{
		{"Type", v.Type},
		{"Mode", v.Mode},
		{"Links", strconv.FormatUint(uint64(v.Nlink), 10)},
		{"UID", strconv.FormatUint(uint64(v.UID), 10)},
		{"GID", strconv.FormatUint(uint64(v.GID), 10)},
		{"Size", strconv.FormatUint(uint64(v.Size), 10)},
		{"Block size", strconv.FormatUint(uint64(v.BlockSize), 10)},
		{"Blocks", strconv.FormatUint(uint64(v.Blocks), 10)},
		{"Rdev", strconv.FormatUint(uint64(v.Rdev), 10)},
		{"FSID", strconv.FormatUint(uint64(v.FSID), 10)},
		{"File ID", strconv.FormatUint(uint64(v.FileID), 10)},
		{"Accessed", v.Atime.Format(time.RFC3339)},
		{"Modified", v.Mtime.Format(time.RFC3339)},
		{"Changed", v.Ctime.Format(time.RFC3339)},
	})
}

type handleView struct {
	Export string `json:"export" yaml:"export"`
	Path   string `json:"path" yaml:"path"`
	Handle string `json:"handle" yaml:"handle"`
}

func printHandle(w io.Writer, export, p string, fh types.FileHandle) error {
	pr, err := newPrinter(w)
	if err != nil {
		return err
	}

	v := handleView{Export: export, Path: path.Clean("/" + p), Handle: fh.String()}
	if pr.Format() != output.FormatTable {
		return pr.Print(v)
	}
	pr.Printf("%s\n", v.Handle)
	return nil
}

func runLookup(cmd *cobra.Command, args []string) error {
	s, _, err := connect(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	fh, err := s.Resolve(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	return printHandle(cmd.OutOrStdout(), args[0], args[1], fh)
}

func runChmod(cmd *cobra.Command, args []string) error {
	mode, err := parseMode(args[0])
	if err != nil {
		return err
	}

	s, _, err := connect(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	attr, err := s.Chmod(cmd.Context(), args[1], args[2], mode)
	if err != nil {
		return err
	}
	return printAttr(cmd.OutOrStdout(), attr)
}

// parseMode parses an octal permission string such as "0644" or "755".
func parseMode(s string) (uint32, error) {
	mode, err := strconv.ParseUint(s, 8, 32)
	if err != nil || mode > 07777 {
		return 0, fmt.Errorf("invalid mode %q: want octal permission bits up to 07777", s)
	}
	return uint32(mode), nil
}

// formatMode renders the permission bits of mode as four octal digits.
func formatMode(mode uint32) string {
	return fmt.Sprintf("%04o", mode&07777)
}
