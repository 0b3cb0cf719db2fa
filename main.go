package main

import (
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"

	"git.fiblab.net/sim/syncer/v3"
	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/task"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
	"gopkg.in/yaml.v2"
)

var (
	// 为空时独立运行，不与其他模拟器同步
	syncerAddr = flag.String("syncer", "", "syncer address (empty means standalone mode), e.g. http://localhost:53001")
	job        = flag.String("job", "job0", "the name of the whole simulation task")
	listenAddr = flag.String("listen", ":51102", "connect-rpc listening address")
	configPath = flag.String("config", "", "config file path")
	configData = flag.String("config-data", "", "config file base64 encoded data")
	// 地图按db.col缓存为本地pb文件，为空则禁用
	cacheDir    = flag.String("cache", "data/", "input cache dir path (empty means disable cache)")
	metricsAddr = flag.String("metrics.listen", "", "prometheus /metrics listening address (empty means disabled), e.g. :9102")
	eventFile   = flag.String("event.file", "", "traffic event batch json injected at startup")
	logLevel    = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}

	log = logrus.WithField("module", "trafficflow")
)

func setupLogging(name string) error {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	level, ok := logLevels[name]
	if !ok {
		return fmt.Errorf("log.level must be one of %v", lo.Keys(logLevels))
	}
	logrus.SetLevel(level)
	return nil
}

// loadConfig 从文件或base64参数读取yaml配置，文件优先
func loadConfig(path, encoded string) (config.Config, error) {
	var c config.Config
	var raw []byte
	var err error
	switch {
	case path != "":
		raw, err = os.ReadFile(path)
	case encoded != "":
		raw, err = base64.StdEncoding.DecodeString(encoded)
	default:
		return c, errors.New("config file or config data must be specified")
	}
	if err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}
	if err := yaml.UnmarshalStrict(raw, &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("metrics server stopped: %v", err)
	}
}

func main() {
	flag.Parse()
	if err := setupLogging(*logLevel); err != nil {
		log.Panic(err)
	}
	c, err := loadConfig(*configPath, *configData)
	if err != nil {
		log.Panic(err)
	}
	log.Infof("%+v", c)

	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr)
	}

	sidecar := syncer.NewSidecar(task.SelfName, *listenAddr, *syncerAddr)
	t := task.NewContext(*job, *cacheDir, c, sidecar, true)
	if *eventFile != "" {
		data, err := os.ReadFile(*eventFile)
		if err != nil {
			log.Panicf("event file load err: %v", err)
		}
		if !t.World().Events().InjectTrafficEvent(data) {
			log.Warnf("no event accepted from %s", *eventFile)
		}
	}
	t.Run()
}
