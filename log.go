package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/shiena/ansicolor"
	"github.com/sirupsen/logrus"
)

// initLog builds the run logger: a dated file under output.logDir and/or
// stderr. With neither configured the logger still writes to stderr so
// errors are never lost.
func initLog(conf *Conf) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	var closer io.Closer = nopCloser{}
	logIO := make([]io.Writer, 0, 2)
	if conf.Output.LogDir != "" {
		if err := makeDir(conf.Output.LogDir); err != nil {
			return nil, nil, err
		}
		filename := filepath.Join(conf.Output.LogDir, time.Now().Format("2006-01-02.log"))
		file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %s: %v", filename, err)
		}
		logIO = append(logIO, file)
		closer = file
	}
	if conf.Output.OutputTerminal || len(logIO) == 0 {
		logIO = append(logIO, os.Stderr)
	}
	log.SetOutput(ansicolor.NewAnsiColorWriter(io.MultiWriter(logIO...)))

	level, err := logrus.ParseLevel(conf.Log.Level)
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		log.Warnf("unknown log level %q, using info", conf.Log.Level)
	} else {
		log.SetLevel(level)
	}
	if conf.Log.Debug {
		log.SetLevel(logrus.DebugLevel)
	}
	return log, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// logOptions dumps the effective configuration at debug level.
func logOptions(log logrus.FieldLogger, conf *Conf) {
	log.Debugf("tile size     = %d", conf.Image.TileSize)
	log.Debugf("overlap       = %d", conf.Image.Overlap)
	log.Debugf("format        = %s", conf.Image.Format)
	log.Debugf("resample      = %s", conf.Image.Resample)
	log.Debugf("aspect        = %g", conf.Image.Aspect)
	log.Debugf("output        = %s", conf.Output.Directory)
	if conf.Collection.Path == "" {
		log.Debugf("collection    = (none)")
		return
	}
	log.Debugf("collection    = %s", conf.Collection.Path)
	log.Debugf("start         = %d", conf.Collection.Start)
	log.Debugf("max level     = %d", conf.Collection.MaxLevel)
	log.Debugf("catalog       = %t", conf.Collection.Catalog)
}
