package bootloader

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/feldbus.go/pkg/cli/sh"
	"github.com/robotalks/feldbus.go/pkg/feldbus/bootloader"
)

type infoOutput struct {
	Family        string `json:"family"`
	MCUID         uint16 `json:"mcu_id"`
	PageSize      uint32 `json:"page_size"`
	FlashSize     uint32 `json:"flash_size"`
	WritableFlash uint32 `json:"writable_flash"`
}

func report(c *ishell.Context, code bootloader.ErrorCode) {
	if err := code.Err(); err != nil {
		c.Err(err)
		return
	}
	sh.Print(c, "OK", map[string]bool{"ok": true})
}

var (
	// EnterCmd broadcasts the enter bootloader request.
	EnterCmd = ishell.Cmd{
		Name: "bl.enter",
		Help: "DEVICE",
		Func: sh.WithRole(func(c *ishell.Context, b *bootloader.Bootloader) {
			sh.Check(c, b.EnterBootloader(), "enter bootloader")
		}),
	}

	// StartCmd broadcasts the start program request.
	StartCmd = ishell.Cmd{
		Name: "bl.start",
		Help: "DEVICE",
		Func: sh.WithRole(func(c *ishell.Context, b *bootloader.Bootloader) {
			sh.Check(c, b.StartProgram(), "start program")
		}),
	}

	// InfoCmd prints the memory geometry.
	InfoCmd = ishell.Cmd{
		Name: "bl.info",
		Help: "DEVICE",
		Func: sh.WithRole(func(c *ishell.Context, b *bootloader.Bootloader) {
			out := infoOutput{Family: b.Family().Name()}
			var ok bool
			if out.MCUID, ok = b.MCUID(); !ok {
				c.Err(fmt.Errorf("%s: reading mcu id failed", b.Name()))
				return
			}
			if out.PageSize, ok = b.PageSize(); !ok {
				c.Err(fmt.Errorf("%s: reading page size failed", b.Name()))
				return
			}
			if out.FlashSize, ok = b.FlashSize(); !ok {
				c.Err(fmt.Errorf("%s: reading flash size failed", b.Name()))
				return
			}
			if out.WritableFlash, ok = b.WritableFlashSize(); !ok {
				c.Err(fmt.Errorf("%s: reading writable flash size failed", b.Name()))
				return
			}
			sh.Print(c, fmt.Sprintf("family=%s mcu=0x%04x page=%d flash=%d writable=%d",
				out.Family, out.MCUID, out.PageSize, out.FlashSize, out.WritableFlash), out)
		}),
	}

	// UnlockCmd unlocks the bootloader.
	UnlockCmd = ishell.Cmd{
		Name: "bl.unlock",
		Help: "DEVICE",
		Func: sh.WithRole(func(c *ishell.Context, b *bootloader.Bootloader) {
			report(c, b.Unlock())
		}),
	}

	// FlashCmd programs a binary image.
	FlashCmd = ishell.Cmd{
		Name: "bl.flash",
		Help: "DEVICE FILE [noverify]",
		Func: sh.WithRole(func(c *ishell.Context, b *bootloader.Bootloader) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("FILE required"))
				return
			}
			image, err := os.ReadFile(c.Args[1])
			if err != nil {
				c.Err(err)
				return
			}
			verify := len(c.Args) < 3 || c.Args[2] != "noverify"
			report(c, b.Program(image, verify))
		}),
	}

	// ReadCmd dumps flash memory.
	ReadCmd = ishell.Cmd{
		Name: "bl.read",
		Help: "DEVICE ADDRESS LENGTH",
		Func: sh.WithRole(func(c *ishell.Context, b *bootloader.Bootloader) {
			if len(c.Args) < 3 {
				c.Err(fmt.Errorf("ADDRESS and LENGTH required"))
				return
			}
			addr, err := sh.ParseUint(c.Args[1], 32)
			if err != nil {
				c.Err(fmt.Errorf("invalid ADDRESS: %w", err))
				return
			}
			length, err := sh.ParseUint(c.Args[2], 32)
			if err != nil {
				c.Err(fmt.Errorf("invalid LENGTH: %w", err))
				return
			}
			buf := make([]byte, length)
			if err := b.ReadFlash(uint32(addr), buf).Err(); err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, strings.TrimSuffix(hex.Dump(buf), "\n"), hex.EncodeToString(buf))
		}),
	}

	// FusesCmd prints the fuses.
	FusesCmd = ishell.Cmd{
		Name: "bl.fuses",
		Help: "DEVICE",
		Func: sh.WithRole(func(c *ishell.Context, b *bootloader.Bootloader) {
			fuses, code := b.ReadFuses()
			if err := code.Err(); err != nil {
				c.Err(err)
				return
			}
			var w strings.Builder
			for _, f := range fuses {
				fmt.Fprintf(&w, "%s=0x%02x ", f.Name, f.Value)
			}
			sh.Print(c, strings.TrimSpace(w.String()), fuses)
		}),
	}
)

func init() {
	sh.AddCmds(
		&EnterCmd,
		&StartCmd,
		&InfoCmd,
		&UnlockCmd,
		&FlashCmd,
		&ReadCmd,
		&FusesCmd,
	)
}
