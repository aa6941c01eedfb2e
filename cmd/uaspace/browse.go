package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"uaspace/internal/addrspace"
	"uaspace/internal/config"
	"uaspace/internal/model"
	"uaspace/internal/snapshot"
	"uaspace/internal/ua"

	"github.com/spf13/cobra"
)

type browseOptions struct {
	models       []string
	skipDefault  bool
	snapshotDir  string
	backupFile   string
	start        string
	depth        int
	all          bool
	minimal      bool
	namespaceURI string
}

func browseCmd() *cobra.Command {
	opts := browseOptions{
		namespaceURI: config.Default().Server.NamespaceURI,
	}

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Print the address space as a tree",
		Long: `Build an address space offline and print it as a tree.

The space is assembled the same way serve does it: namespace 0, then a
saved snapshot or backup, then the built-in model and model files.
Only hierarchical references are followed unless --all is given.`,
		Example: `  uaspace browse
  uaspace browse --model plant.yaml --start ns=1;s=plant --depth 5
  uaspace browse --backup uaspace.bak --skip-default`,
		RunE: func(cmd *cobra.Command, args []string) error {
			space, err := buildSpace(opts)
			if err != nil {
				return err
			}
			start, err := ua.ParseNodeID(opts.start)
			if err != nil {
				return err
			}
			return printTree(cmd.OutOrStdout(), space, start, opts.depth, opts.all)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&opts.models, "model", "m", nil, "追加で読み込むモデルファイル")
	f.BoolVar(&opts.skipDefault, "skip-default", false, "組み込みモデルを読み込まない")
	f.StringVar(&opts.snapshotDir, "snapshot", "", "復元するスナップショットのディレクトリ")
	f.StringVar(&opts.backupFile, "backup", "", "復元するバックアップファイル")
	f.StringVar(&opts.start, "start", ua.RootFolder.String(), "起点のノードID")
	f.IntVar(&opts.depth, "depth", 3, "表示する深さ")
	f.BoolVar(&opts.all, "all", false, "非階層参照もたどる")
	f.BoolVar(&opts.minimal, "minimal", false, "Serverオブジェクトを作らない")
	f.StringVar(&opts.namespaceURI, "namespace-uri", opts.namespaceURI, "サーバー名前空間のURI")
	cmd.MarkFlagsMutuallyExclusive("snapshot", "backup")
	return cmd
}

// buildSpace はserveと同じ順序でアドレス空間を組み立てる
func buildSpace(opts browseOptions) (*addrspace.Space, error) {
	space := addrspace.New()
	if err := addrspace.Bootstrap(space, opts.minimal); err != nil {
		return nil, err
	}
	space.Namespaces().Register(opts.namespaceURI)

	if err := restoreInto(space, opts); err != nil {
		return nil, err
	}

	if !opts.skipDefault {
		if _, err := model.Apply(space, model.Default()); err != nil {
			return nil, err
		}
	}
	for _, path := range opts.models {
		if _, err := model.ApplyFile(space, path); err != nil {
			return nil, err
		}
	}
	return space, nil
}

// restoreInto はスナップショットかバックアップを読み込む
func restoreInto(space *addrspace.Space, opts browseOptions) error {
	var store *snapshot.Store
	var err error
	switch {
	case opts.snapshotDir != "":
		if store, err = snapshot.Open(snapshot.Options{Path: opts.snapshotDir}); err != nil {
			return err
		}
	case opts.backupFile != "":
		f, err := os.Open(opts.backupFile)
		if err != nil {
			return fmt.Errorf("failed to open backup: %w", err)
		}
		defer f.Close()
		if store, err = snapshot.Open(snapshot.Options{InMemory: true}); err != nil {
			return err
		}
		if err := store.LoadBackup(f); err != nil {
			store.Close()
			return err
		}
	default:
		return nil
	}
	defer store.Close()

	_, ok, err := store.Restore(space)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no snapshot saved in %s%s", opts.snapshotDir, opts.backupFile)
	}
	return nil
}

// printTree はstartから参照をたどってツリーを書き出す
// 一度表示したノードは展開しない
func printTree(out io.Writer, space *addrspace.Space, start ua.NodeID, depth int, all bool) error {
	root, ok := space.GetNode(start)
	if !ok {
		return &addrspace.NodeError{Op: "browse", ID: start, Err: addrspace.ErrNotFound}
	}

	opts := addrspace.BrowseOptions{Direction: addrspace.Forward}
	if !all {
		opts.ReferenceType = ua.HierarchicalReferences
		opts.IncludeSubtypes = true
	}

	fmt.Fprintln(out, nodeLine(root))
	seen := map[ua.NodeID]bool{start: true}

	var walk func(id ua.NodeID, prefix string, level int)
	walk = func(id ua.NodeID, prefix string, level int) {
		if level >= depth {
			return
		}
		refs := space.BrowseAll(id, opts)
		for i, r := range refs {
			branch, next := "├── ", "│   "
			if i == len(refs)-1 {
				branch, next = "└── ", "    "
			}
			child, ok := space.GetNode(r.NodeID)
			if !ok {
				continue
			}
			line := fmt.Sprintf("%s%s%s %s", prefix, branch, refTypeName(space, r.ReferenceType), nodeLine(child))
			if seen[r.NodeID] {
				fmt.Fprintln(out, line+" ...")
				continue
			}
			fmt.Fprintln(out, line)
			seen[r.NodeID] = true
			walk(r.NodeID, prefix+next, level+1)
		}
	}
	walk(start, "", 0)
	return nil
}

func nodeLine(v addrspace.NodeView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s) [%s]", v.BrowseName.Name, v.ID, v.Class)
	if v.Class == ua.NodeClassVariable {
		if val, ok := v.Value(); ok && !val.IsNull() {
			fmt.Fprintf(&b, " = %s", ua.FormatValue(val))
		}
	}
	return b.String()
}

func refTypeName(space *addrspace.Space, id ua.NodeID) string {
	if v, ok := space.GetNode(id); ok {
		return v.BrowseName.Name
	}
	return id.String()
}
