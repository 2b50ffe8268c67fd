package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/nfsclient/internal/protocol/mount"
)

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "List the server's exports",
	Long: `List the file systems exported by the server (Mount EXPORT).

Examples:
  # List exports of a server
  nfsctl exports --host fileserver

  # As JSON
  nfsctl exports --host fileserver -o json`,
	Args: cobra.NoArgs,
	RunE: runExports,
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "List the server's active mounts",
	Long:  `List the mounts the server has recorded for all clients (Mount DUMP).`,
	Args:  cobra.NoArgs,
	RunE:  runDump,
}

var mountCmd = &cobra.Command{
	Use:   "mount <export>",
	Short: "Mount an export and print its root handle",
	Long: `Ask the server for the root file handle of an export (Mount MNT).

The server records the mount until "nfsctl umount" or "nfsctl umountall".`,
	Args: cobra.ExactArgs(1),
	RunE: runMount,
}

var umountCmd = &cobra.Command{
	Use:   "umount <export>",
	Short: "Remove an export from the server's mount table",
	Args:  cobra.ExactArgs(1),
	RunE:  runUmount,
}

var umountAllCmd = &cobra.Command{
	Use:   "umountall",
	Short: "Remove every mount of this client from the server's mount table",
	Args:  cobra.NoArgs,
	RunE:  runUmountAll,
}

type exportView struct {
	Directory string   `json:"directory" yaml:"directory"`
	Groups    []string `json:"groups" yaml:"groups"`
}

// exportList is a list of exports for table rendering.
type exportList []exportView

// Headers implements TableRenderer.
func (l exportList) Headers() []string {
	return []string{"EXPORT", "ALLOWED"}
}

// Rows implements TableRenderer.
func (l exportList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, e := range l {
		allowed := "*"
		if len(e.Groups) > 0 {
			allowed = strings.Join(e.Groups, ",")
		}
		rows = append(rows, []string{e.Directory, allowed})
	}
	return rows
}

type mountView struct {
	Hostname  string `json:"hostname" yaml:"hostname"`
	Directory string `json:"directory" yaml:"directory"`
}

// mountList is a list of mounts for table rendering.
type mountList []mountView

// Headers implements TableRenderer.
func (l mountList) Headers() []string {
	return []string{"CLIENT", "DIRECTORY"}
}

// Rows implements TableRenderer.
func (l mountList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, m := range l {
		rows = append(rows, []string{m.Hostname, m.Directory})
	}
	return rows
}

func toExportList(entries []mount.ExportEntry) exportList {
	l := make(exportList, 0, len(entries))
	for _, e := range entries {
		groups := e.Groups
		if groups == nil {
			groups = []string{}
		}
		l = append(l, exportView{Directory: e.Directory, Groups: groups})
	}
	return l
}

func toMountList(entries []mount.MountEntry) mountList {
	l := make(mountList, 0, len(entries))
	for _, m := range entries {
		l = append(l, mountView{Hostname: m.Hostname, Directory: m.Directory})
	}
	return l
}

func runExports(cmd *cobra.Command, args []string) error {
	s, _, err := connect(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	entries, err := s.Exports(cmd.Context())
	if err != nil {
		return fmt.Errorf("list exports: %w", err)
	}
	return printList(cmd.OutOrStdout(), toExportList(entries), len(entries) == 0, "No exports.")
}

func runDump(cmd *cobra.Command, args []string) error {
	s, _, err := connect(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	entries, err := s.Dump(cmd.Context())
	if err != nil {
		return fmt.Errorf("list mounts: %w", err)
	}
	return printList(cmd.OutOrStdout(), toMountList(entries), len(entries) == 0, "No active mounts.")
}

func runMount(cmd *cobra.Command, args []string) error {
	s, _, err := connect(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	root, err := s.Mount(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printHandle(cmd.OutOrStdout(), args[0], "/", root)
}

func runUmount(cmd *cobra.Command, args []string) error {
	s, _, err := connect(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	if err := s.Unmount(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("unmount %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Unmounted %s\n", args[0])
	return nil
}

func runUmountAll(cmd *cobra.Command, args []string) error {
	s, _, err := connect(cmd)
	if err != nil {
		return err
	}
	defer closeSession(s)

	if err := s.UnmountAll(cmd.Context()); err != nil {
		return fmt.Errorf("unmount all: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Unmounted all exports")
	return nil
}
