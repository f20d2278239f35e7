package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/tobiasfamos/PageStore/conf"
	"github.com/tobiasfamos/PageStore/logger"
	"github.com/tobiasfamos/PageStore/record"
	"github.com/tobiasfamos/PageStore/store"
)

const dateLayout = "2006-01-02"

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(2)
		}
		abort(fmt.Sprintf("Error loading configuration: %v", err))
	}
	logger.SetLevel(cfg.LogLevel)

	cli, err := NewCLI(cfg)
	if err != nil {
		abort(fmt.Sprintf("Error opening page store: %v\nMake sure the target directory exists.", err))
	}

	label := fmt.Sprintf("PageStore @ %s>", cfg.StorageKind)
	if cfg.StorageKind == store.StorageFile {
		label = fmt.Sprintf("PageStore @ %s>", cfg.DataDir)
	}

	r := bufio.NewReader(os.Stdin)
	for {
		cmd, ok := prompt(r, label)
		if !ok {
			cmd = "exit"
		}
		response, cont := cli.Handle(cmd)
		fmt.Println(response)
		if !cont {
			return
		}
	}
}

// loadConfig reads the optional ini file and applies the command line overrides on top of it.
func loadConfig(args []string) (*conf.Cfg, error) {
	flags := pflag.NewFlagSet("pagestore", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "", "path of an ini configuration file")
	dir := flags.StringP("dir", "d", "", "data directory; selects file storage")
	capacity := flags.Int("capacity", 0, "number of cache frames")
	pageSize := flags.Int("page-size", 0, "page size in bytes")
	eviction := flags.String("eviction", "", "eviction policy (lru or fifo)")
	latency := flags.Duration("latency", 0, "emulated latency per I/O of the memory device")
	logLevel := flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ./PageStore [flags]")
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfg := conf.NewCfg()
	if *configPath != "" {
		if err := cfg.Load(*configPath); err != nil {
			return nil, err
		}
	}

	if flags.Changed("dir") {
		cfg.StorageKind = store.StorageFile
		cfg.DataDir = *dir
	}
	if flags.Changed("capacity") {
		cfg.CacheCapacity = *capacity
	}
	if flags.Changed("page-size") {
		cfg.PageSize = *pageSize
	}
	if flags.Changed("eviction") {
		cfg.Eviction = strings.ToLower(*eviction)
	}
	if flags.Changed("latency") {
		cfg.Latency = *latency
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}

	return cfg, cfg.Validate()
}

func prompt(r *bufio.Reader, label string) (string, bool) {
	for {
		fmt.Fprint(os.Stderr, label+" ")
		out, err := r.ReadString('\n')
		if out = strings.TrimSpace(out); out != "" {
			return out, true
		}
		if err != nil {
			return "", false
		}
	}
}

type CLI struct {
	db *store.Database
}

func NewCLI(cfg *conf.Cfg) (*CLI, error) {
	db, err := store.Open(cfg.StoreOptions())
	if err != nil {
		return nil, err
	}

	return &CLI{db: db}, nil
}

func (cli *CLI) Close() error {
	return cli.db.Close()
}

func (cli *CLI) Handle(cmd string) (string, bool) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return cli.Help(), true
	}

	switch parts[0] {
	case "create":
		if len(parts) != 2 {
			return cli.Help(), true
		}

		oid, err := cli.db.Tables.CreateTable(parts[1])
		if err != nil {
			return fmt.Sprintf("Error creating table: %v", err), true
		}

		return fmt.Sprintf("Created table %s with oid %d", parts[1], oid), true

	case "grow":
		if len(parts) != 3 {
			return cli.Help(), true
		}

		oid, err := cli.db.Tables.TableOid(parts[1])
		if err != nil {
			return fmt.Sprintf("Error: %v", err), true
		}
		count, err := strconv.Atoi(parts[2])
		if err != nil {
			return fmt.Sprintf("Invalid page count %s: %v", parts[2], err), true
		}

		first, err := cli.db.Tables.AddPage(oid, count)
		if err != nil {
			return fmt.Sprintf("Error adding pages: %v", err), true
		}

		return fmt.Sprintf("Added pages [%d, %d) to %s", first, first+store.PageID(count), parts[1]), true

	case "put":
		if len(parts) < 4 {
			return cli.Help(), true
		}

		return cli.put(parts[1], parts[2], parts[3:]), true

	case "scan":
		if len(parts) != 2 {
			return cli.Help(), true
		}

		return cli.scan(parts[1]), true

	case "tables":
		var b strings.Builder
		fmt.Fprintf(&b, "%-6s %-20s %s", "oid", "name", "pages")
		for _, info := range cli.db.Tables.Tables() {
			fmt.Fprintf(&b, "\n%-6d %-20s %d", info.Oid, info.Name, info.Pages)
		}
		return b.String(), true

	case "flush":
		if err := cli.db.Pool.Flush(); err != nil {
			return fmt.Sprintf("Error flushing cache: %v", err), true
		}
		return "Flushed all dirty pages", true

	case "stats":
		return cli.stats(), true

	case "exit":
		err := cli.Close()
		if err == nil {
			return "Page store successfully closed", false
		} else {
			return fmt.Sprintf("Error closing page store: %v", err), false
		}
	default:
		return cli.Help(), true
	}
}

func (cli *CLI) put(name, pageArg string, fieldArgs []string) string {
	oid, err := cli.db.Tables.TableOid(name)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	id, err := strconv.ParseUint(pageArg, 10, 32)
	if err != nil {
		return fmt.Sprintf("Invalid page %s: %v", pageArg, err)
	}
	pageID := store.PageID(id)
	if owner, ok := cli.db.Tables.TableOf(pageID); !ok || owner != oid {
		return fmt.Sprintf("Page %d does not belong to table %s", pageID, name)
	}

	r, err := parseRecord(fieldArgs)
	if err != nil {
		return fmt.Sprintf("Invalid record: %v", err)
	}

	page, err := cli.db.Pool.GetAndPin(pageID)
	if err != nil {
		return fmt.Sprintf("Error pinning page: %v", err)
	}
	defer page.Release()

	result := page.PutRecord(record.Encode(r), store.AppendSlot)
	switch {
	case result.IsOK():
		return fmt.Sprintf("Stored %s in page %d slot %d", formatRecord(r), pageID, result.Slot)
	case result.IsOutOfSpace():
		return fmt.Sprintf("Page %d is out of space (%d bytes free)", pageID, page.FreeSpace())
	default:
		return fmt.Sprintf("Slot %d is out of range", result.Slot)
	}
}

func (cli *CLI) scan(name string) string {
	oid, err := cli.db.Tables.TableOid(name)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	var b strings.Builder
	count := 0
	err = cli.db.Tables.Scan(oid, func(pageID store.PageID, slot store.SlotID, data []byte) error {
		r, err := record.Decode(data)
		if err != nil {
			return errors.Wrapf(err, "page %d slot %d", pageID, slot)
		}
		fmt.Fprintf(&b, "%d/%d\t%s\n", pageID, slot, formatRecord(r))
		count++
		return nil
	})
	if err != nil {
		return fmt.Sprintf("Error scanning %s: %v", name, err)
	}

	fmt.Fprintf(&b, "%d records", count)
	return b.String()
}

func (cli *CLI) stats() string {
	cache := cli.db.Pool.Stats()
	out := fmt.Sprintf("cache: %d/%d frames resident, %d hits, %d misses, %d evictions, %d write backs",
		cli.db.Pool.Resident(), cli.db.Pool.Capacity(), cache.Hits, cache.Misses, cache.Evictions, cache.Writebacks)

	out += fmt.Sprintf("\ndisk: %d/%d pages allocated", cli.db.Disk.Occupied(), cli.db.Disk.Capacity())
	if d, ok := cli.db.Disk.(interface{ Stats() store.DiskStats }); ok {
		s := d.Stats()
		out += fmt.Sprintf(", %d reads, %d writes, %.0f ms access cost", s.Reads, s.Writes, s.AccessCost)
	}

	return out
}

// parseRecord parses fields of the form i:<int>, s:<string> and d:<YYYY-MM-DD>.
func parseRecord(args []string) (record.Record, error) {
	r := make(record.Record, 0, len(args))
	for _, arg := range args {
		kind, value, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, errors.Errorf("field %q has no type prefix", arg)
		}

		switch kind {
		case "i":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "field %q", arg)
			}
			r = append(r, record.Int(n))
		case "s":
			r = append(r, record.String(value))
		case "d":
			t, err := time.Parse(dateLayout, value)
			if err != nil {
				return nil, errors.Wrapf(err, "field %q", arg)
			}
			r = append(r, record.Date(t))
		default:
			return nil, errors.Errorf("field %q has unknown type %q", arg, kind)
		}
	}
	return r, nil
}

func formatRecord(r record.Record) string {
	fields := make([]string, len(r))
	for i, v := range r {
		fields[i] = v.String()
	}
	return "(" + strings.Join(fields, ", ") + ")"
}

func (cli *CLI) Help() string {
	out := ""
	out += "Valid commands:\n"
	out += "\n"
	out += "\tcreate <table>\n"
	out += "\tExample: create people\n"
	out += "\n"
	out += "\tgrow <table> <count>\n"
	out += "\tExample: grow people 15\n"
	out += "\n"
	out += "\tput <table> <page> <field>...\n"
	out += "\tFields: i:<int> s:<string> d:<YYYY-MM-DD>\n"
	out += "\tExample: put people 1 i:42 s:ada d:1815-12-10\n"
	out += "\n"
	out += "\tscan <table>\n"
	out += "\ttables\n"
	out += "\tflush\n"
	out += "\tstats\n"
	out += "\texit\n"

	return out
}

func abort(msg string) {
	fmt.Printf("Error: %s\n", msg)
	os.Exit(1)
}
