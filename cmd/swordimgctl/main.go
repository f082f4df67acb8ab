package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	swordvfs "github.com/sword-emu/swordvfs"
	"github.com/sword-emu/swordvfs/directory"
	"github.com/sword-emu/swordvfs/storage"
	"github.com/sword-emu/swordvfs/sword"
	"github.com/sword-emu/swordvfs/vfs"
)

const vnodeTableSize = 64

func main() {
	app := &cli.App{
		Usage: "Inspect and manipulate SWORD disk images",
		Commands: []*cli.Command{
			{
				Name:      "format",
				Usage:     "Create a blank image of a predefined geometry",
				ArgsUsage: "GEOMETRY IMAGE_FILE",
				Action:    formatImage,
			},
			{
				Name:      "ls",
				Usage:     "List the files on an image",
				ArgsUsage: "IMAGE_FILE",
				Action:    listImage,
			},
			{
				Name:      "cat",
				Usage:     "Print a file's contents to stdout",
				ArgsUsage: "IMAGE_FILE NAME",
				Action:    catFile,
			},
			{
				Name:      "get",
				Usage:     "Copy a file out of an image to the host",
				ArgsUsage: "IMAGE_FILE NAME DEST",
				Action:    getFile,
			},
			{
				Name:      "put",
				Usage:     "Copy a host file into an image",
				ArgsUsage: "IMAGE_FILE SRC NAME",
				Action:    putFile,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

// formatImage creates a blank image of a predefined geometry: a zero-filled
// file of the right size with a single end-of-directory sentinel written
// at the standard directory start, mirroring what mkfs does for the
// original source's blank-media layout.
func formatImage(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("usage: format GEOMETRY IMAGE_FILE")
	}
	geom, err := storage.GetGeometry(c.Args().Get(0))
	if err != nil {
		return err
	}
	path := c.Args().Get(1)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Truncate(geom.TotalSizeBytes()); err != nil {
		return err
	}

	sentinel := directory.Encode(directory.Entry{Attribute: swordvfs.AttrEndOfDirectory})
	if _, err := f.WriteAt(sentinel, int64(swordvfs.DefaultDirectoryRecord)*swordvfs.RecordSize); err != nil {
		return err
	}
	return nil
}

// openEngine mounts path as drive A and returns a ready vfs.Engine and its
// I/O context, the CLI-sized equivalent of the trap layer's MOUNT call.
func openEngine(path string, flags swordvfs.MountFlags) (*vfs.Engine, *vfs.IOContext, error) {
	registry := storage.NewRegistry()
	if err := registry.Register(storage.NewDisk2DDriver()); err != nil {
		return nil, nil, err
	}
	if err := registry.Register(storage.NewMZTDriver()); err != nil {
		return nil, nil, err
	}
	if err := registry.Register(storage.NewSidecarDriver()); err != nil {
		return nil, nil, err
	}

	drv, err := registry.Mount(swordvfs.DriveA, path, flags)
	if err != nil {
		return nil, nil, err
	}

	engine := vfs.NewEngine(vnodeTableSize)
	if err := engine.RegisterFileSystem(sword.New()); err != nil {
		return nil, nil, err
	}

	ioctx := vfs.NewIOContext()
	if err := engine.Mount(swordvfs.DriveA, "sword", drv, flags, ioctx); err != nil {
		return nil, nil, err
	}
	return engine, ioctx, nil
}

func listImage(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("usage: ls IMAGE_FILE")
	}
	engine, ioctx, err := openEngine(c.Args().Get(0), swordvfs.MountReadOnly)
	if err != nil {
		return err
	}
	defer engine.Unmount(swordvfs.DriveA, ioctx)

	ds, err := engine.OpenDir(ioctx, swordvfs.DriveA)
	if err != nil {
		return err
	}
	defer engine.CloseDir(ioctx, ds)

	for {
		fib, rerr := engine.ReadDir(ioctx, ds)
		if rerr != nil {
			break
		}
		fmt.Printf("%-16s %5d  attr=%02x\n", fib.HostName, fib.Size, byte(fib.Header.Attribute))
	}
	return nil
}

func catFile(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("usage: cat IMAGE_FILE NAME")
	}
	return streamToWriter(c.Args().Get(0), c.Args().Get(1), os.Stdout)
}

func getFile(c *cli.Context) error {
	if c.Args().Len() != 3 {
		return fmt.Errorf("usage: get IMAGE_FILE NAME DEST")
	}
	out, err := os.Create(c.Args().Get(2))
	if err != nil {
		return err
	}
	defer out.Close()
	return streamToWriter(c.Args().Get(0), c.Args().Get(1), out)
}

func streamToWriter(imagePath, name string, dest io.Writer) error {
	engine, ioctx, err := openEngine(imagePath, swordvfs.MountReadOnly)
	if err != nil {
		return err
	}
	defer engine.Unmount(swordvfs.DriveA, ioctx)

	// Open matches the requested file type against the entry's, so ask
	// for the type the file already has.
	attr, err := engine.GetAttr(swordvfs.DriveA, ioctx, name)
	if err != nil {
		return err
	}
	fd, err := engine.Open(ioctx, swordvfs.DriveA, name, swordvfs.O_RDONLY, swordvfs.HeaderPacket{Attribute: attr})
	if err != nil {
		return err
	}
	defer engine.Close(ioctx, fd)

	buf := make([]byte, swordvfs.ClusterSize)
	for {
		n, rerr := engine.Read(ioctx, fd, buf)
		if n > 0 {
			if _, werr := dest.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr != nil {
			return rerr
		}
		if n == 0 {
			return nil
		}
	}
}

func putFile(c *cli.Context) error {
	if c.Args().Len() != 3 {
		return fmt.Errorf("usage: put IMAGE_FILE SRC NAME")
	}
	imagePath, srcPath, destName := c.Args().Get(0), c.Args().Get(1), c.Args().Get(2)

	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	engine, ioctx, err := openEngine(imagePath, 0)
	if err != nil {
		return err
	}
	defer engine.Unmount(swordvfs.DriveA, ioctx)

	header := swordvfs.HeaderPacket{Attribute: attributeForName(destName)}
	fd, err := engine.Creat(ioctx, swordvfs.DriveA, destName, header)
	if err != nil {
		return err
	}
	defer engine.Close(ioctx, fd)

	buf := make([]byte, swordvfs.ClusterSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := engine.Write(ioctx, fd, buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// attributeForName guesses a SWORD file type from a host extension, the
// same inference `put` needs since the host side has no native header
// packet to carry across.
func attributeForName(hostName string) swordvfs.Attribute {
	ext := ""
	if idx := strings.LastIndex(hostName, "."); idx >= 0 {
		ext = strings.ToUpper(hostName[idx+1:])
	}
	switch ext {
	case "BAS":
		return swordvfs.AttrBAS
	case "ASC", "TXT":
		return swordvfs.AttrASC
	default:
		return swordvfs.AttrBIN
	}
}
