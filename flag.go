package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

const (
	appName    = "deepzoom"
	appVersion = "0.1.0"

	defaultConf = "./conf/conf.toml"
)

// errReported marks an error that has already gone through the run logger.
var errReported = errors.New("reported")

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{"V"},
		Usage:   "print the version",
	}
}

func newApp() *cli.App {
	app := cli.NewApp()

	app.Name = appName
	app.Usage = "cut images into Deep Zoom pyramids and pack them into a collection"
	app.Version = appVersion
	app.ArgsUsage = "SOURCE... (- reads stdin)"
	app.Writer = os.Stderr
	app.HideHelpCommand = true

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Value:   defaultConf,
			Usage:   "set config `FILE`",
		},
		&cli.IntFlag{
			Name:    "tile-size",
			Aliases: []string{"t"},
			Value:   DefaultTileSize,
			Usage:   "tile edge in pixels",
		},
		&cli.IntFlag{
			Name:    "overlap",
			Aliases: []string{"o"},
			Value:   DefaultOverlap,
			Usage:   "tile overlap written to the descriptor",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Value:   JPG,
			Usage:   "tile format: jpg, png, gif, tif or bmp",
		},
		&cli.IntFlag{
			Name:    "quality",
			Aliases: []string{"q"},
			Value:   90,
			Usage:   "jpeg quality",
		},
		&cli.StringFlag{
			Name:  "resample",
			Value: "Bilinear",
			Usage: "halving filter: NearestNeighbor, Bilinear, Bicubic, MitchellNetravali, Lanczos2 or Lanczos3",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"O"},
			Value:   ".",
			Usage:   "output `DIR` for pyramids",
		},
		&cli.StringFlag{
			Name:    "collection",
			Aliases: []string{"C"},
			Usage:   "pack every source into the collection at `PATH`",
		},
		&cli.IntFlag{
			Name:    "start",
			Aliases: []string{"n"},
			Usage:   "id of the first collection item",
		},
		&cli.IntFlag{
			Name:    "max-level",
			Aliases: []string{"m"},
			Value:   DefaultMaxLevel,
			Usage:   "deepest collection level",
		},
		&cli.Float64Flag{
			Name:    "aspect",
			Aliases: []string{"a"},
			Usage:   "pad sources to this width/height ratio before tiling",
		},
		&cli.StringFlag{
			Name:  "background",
			Value: "black",
			Usage: "padding and collection canvas color",
		},
		&cli.BoolFlag{
			Name:  "xml",
			Usage: "write descriptors with the .xml extension",
		},
		&cli.BoolFlag{
			Name:  "catalog",
			Usage: "keep collection items in a sqlite catalog next to the collection",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "debug logging",
		},
		&cli.StringFlag{
			Name:    "log-level",
			Aliases: []string{"l"},
			Value:   "info",
			Usage:   "set log level",
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "hide the progress bars",
		},
	}

	app.Action = run
	return app
}

// applyFlags copies the flags given on the command line over conf.
func applyFlags(c *cli.Context, conf *Conf) {
	if c.IsSet("tile-size") {
		conf.Image.TileSize = c.Int("tile-size")
	}
	if c.IsSet("overlap") {
		conf.Image.Overlap = c.Int("overlap")
	}
	if c.IsSet("format") {
		conf.Image.Format = c.String("format")
	}
	if c.IsSet("quality") {
		conf.Image.Quality = c.Int("quality")
	}
	if c.IsSet("resample") {
		conf.Image.Resample = c.String("resample")
	}
	if c.IsSet("output") {
		conf.Output.Directory = c.String("output")
	}
	if c.IsSet("aspect") {
		conf.Image.Aspect = c.Float64("aspect")
	}
	if c.IsSet("background") {
		conf.Image.Background = c.String("background")
		conf.Collection.Background = c.String("background")
	}
	if c.IsSet("xml") {
		conf.Image.XMLExt = c.Bool("xml")
	}
	if c.IsSet("collection") {
		conf.Collection.Path = c.String("collection")
	}
	if c.IsSet("start") {
		conf.Collection.Start = c.Int("start")
		conf.Collection.StartSet = true
	}
	if c.IsSet("max-level") {
		conf.Collection.MaxLevel = c.Int("max-level")
	}
	if c.IsSet("catalog") {
		conf.Collection.Catalog = c.Bool("catalog")
	}
	if c.IsSet("log-level") {
		conf.Log.Level = c.String("log-level")
	}
	if c.Bool("debug") {
		conf.Log.Debug = true
	}
	if c.Bool("no-progress") {
		conf.Output.Progress = false
	}
}

func run(c *cli.Context) error {
	if c.NArg() < 1 {
		cli.ShowAppHelp(c)
		return fmt.Errorf("no source image given")
	}

	conf, err := loadConf(c.String("config"), c.IsSet("config"))
	if err != nil {
		return err
	}
	applyFlags(c, conf)
	if err := conf.normalize(); err != nil {
		return err
	}

	log, closer, err := initLog(conf)
	if err != nil {
		return err
	}
	defer closer.Close()
	logOptions(log, conf)

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	task, err := NewTask(conf, log)
	if err != nil {
		log.Error(err)
		return fmt.Errorf("%v: %w", err, errReported)
	}
	defer task.Close()

	se := NewSafeExit(log)
	defer se.Stop()
	se.Register(func() { closer.Close() })
	se.Register(cancel)
	se.Register(task.Abort)

	log.Infof("task %s started, %d source(s)", task.ID, c.NArg())
	if err := task.Run(ctx, c.Args().Slice()); err != nil {
		log.Error(err)
		return fmt.Errorf("%v: %w", err, errReported)
	}
	return nil
}
