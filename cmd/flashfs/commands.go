package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/rstms/flashfs/config"
	"github.com/rstms/flashfs/image"
	"github.com/spf13/cobra"
)

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "erase the device and write an empty file system",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if density, _ := cmd.Flags().GetInt("density"); density != 0 {
			cfg.Device.Density = density
		}
		img, err := openImage(true)
		if err != nil {
			return err
		}
		info, err := img.Info()
		if err != nil {
			img.Close()
			return Fatal(err)
		}
		fmt.Printf("formatted %s: %d free nodes of %d bytes\n", info["device"], info["free_nodes"], info["node_capacity"])
		return img.Close()
	},
}

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "list files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		long, _ := cmd.Flags().GetBool("long")
		return withImage(func(img *image.Image) error {
			records, err := img.ScanFiles()
			if err != nil {
				return Fatal(err)
			}
			if !long {
				for _, record := range records {
					fmt.Println(record.Name)
				}
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "SIZE\tPAGE\tSTART\tEND\tNAME\t")
			for _, r := range records {
				fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%s\t\n", r.Size, r.Page, r.StartNode, r.EndNode, r.Name)
			}
			return w.Flush()
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put SRC [NAME]",
	Short: "copy a host file into the file system",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := filepath.Base(args[0])
		if len(args) == 2 {
			name = args[1]
		}
		return withImage(func(img *image.Image) error {
			return img.AddFile(name, args[0])
		})
	},
}

var appendCmd = &cobra.Command{
	Use:   "append NAME SRC",
	Short: "append a host file to an existing file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return Fatal(err)
		}
		return withImage(func(img *image.Image) error {
			return img.Append(args[0], data)
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get NAME [DST]",
	Short: "copy a file out to the host",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dst := filepath.Base(filepath.FromSlash(args[0]))
		if len(args) == 2 {
			dst = args[1]
		}
		return withImage(func(img *image.Image) error {
			data, err := img.ReadFile(args[0])
			if err != nil {
				return Fatal(err)
			}
			return os.WriteFile(dst, data, 0600)
		})
	},
}

var catCmd = &cobra.Command{
	Use:   "cat NAME...",
	Short: "write files to stdout",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withImage(func(img *image.Image) error {
			for _, name := range args {
				if _, err := img.Extract(name, os.Stdout); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "show device and file system details",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withImage(func(img *image.Image) error {
			info, err := img.Info()
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(info))
			for key := range info {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Printf("%s: %v\n", key, info[key])
			}
			return nil
		})
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump PAGE...",
	Short: "hex dump device pages",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pages := []int{}
		for _, arg := range args {
			page, err := strconv.Atoi(arg)
			if err != nil {
				return Fatal(err)
			}
			pages = append(pages, page)
		}
		return withImage(func(img *image.Image) error {
			for _, page := range pages {
				if err := img.Dump(os.Stdout, page); err != nil {
					return err
				}
			}
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import DIR",
	Short: "copy every file under a host directory into the file system",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withImage(func(img *image.Image) error {
			return img.Import(args[0])
		})
	},
}

var exportCmd = &cobra.Command{
	Use:   "export DIR",
	Short: "copy every file out to a host directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withImage(func(img *image.Image) error {
			return img.Export(args[0])
		})
	},
}

var rewriteCmd = &cobra.Command{
	Use:   "rewrite DST",
	Short: "copy the image file into a new, compacted image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		density, _ := cmd.Flags().GetInt("density")
		src, _ := cfg.Device.Store.File["path"].(string)
		if cfg.Device.Store.Type != "file" || src == "" {
			return Fatalf("rewrite requires an image file")
		}
		return image.RewriteImage(args[0], src, density)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		path, err := config.InitConfig(path, force)
		if err != nil {
			return Fatal(err)
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	formatCmd.Flags().Int("density", 0, "density code for a new device, 2 (AT45DB011) to 8 (AT45DB642)")
	lsCmd.Flags().BoolP("long", "l", false, "show size and node range")
	rewriteCmd.Flags().Int("density", 0, "density code of the new image (default: same as source)")
	configInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(
		formatCmd,
		lsCmd,
		putCmd,
		appendCmd,
		getCmd,
		catCmd,
		infoCmd,
		dumpCmd,
		importCmd,
		exportCmd,
		rewriteCmd,
		configCmd,
	)
}
