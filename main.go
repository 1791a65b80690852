package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/causalbandits/otpsim/config"
	"github.com/causalbandits/otpsim/metrics"
	"github.com/causalbandits/otpsim/process"
)

func main() {
	configPath := flag.String("config", "", "path to an experiment YAML configuration file")
	flag.Parse()
	if *configPath == "" {
		log.Fatalf("main: -config is required")
	}

	data, err := os.ReadFile(*configPath)
	if err != nil {
		log.Fatalf("main: could not read config file: %v", err)
	}
	cfg, err := config.Load(data)
	if err != nil {
		log.Fatalf("main: could not parse config file: %v", err)
	}
	procCfg, err := cfg.Process()
	if err != nil {
		log.Fatalf("main: could not build experiment: %v", err)
	}
	reg := metrics.New()
	procCfg.Metrics = reg

	result, err := process.Run(procCfg)
	if err != nil {
		log.Fatalf("main: experiment run failed: %v", err)
	}

	root := cfg.OutputRoot
	if root == "" {
		root = "./output"
	}
	desc := cfg.Description
	if desc == "" {
		desc = "experiment"
	}
	outDir := filepath.Join(root, fmt.Sprintf("%s_N%d", desc, cfg.NumAgents))
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("main: could not create output directory: %v", err)
	}

	for _, level := range sortedLevels(result) {
		if err := writeFloatDataframe(filepath.Join(outDir, fmt.Sprintf("%v_cpr.csv", level)), result.CPR[level]); err != nil {
			log.Fatalf("main: could not write cpr dataframe: %v", err)
		}
		if err := writeIntDataframe(filepath.Join(outDir, fmt.Sprintf("%v_poa.csv", level)), result.POA[level]); err != nil {
			log.Fatalf("main: could not write poa dataframe: %v", err)
		}
	}
	fmt.Printf("wrote %d level(s) to %s\n", len(result.CPR), outDir)
}

// sortedLevels returns result's bucket keys in a stable order, for
// deterministic output file naming across runs.
func sortedLevels(result *process.Result) []interface{} {
	levels := make([]interface{}, 0, len(result.CPR))
	for level := range result.CPR {
		levels = append(levels, level)
	}
	sort.Slice(levels, func(i, j int) bool {
		return fmt.Sprint(levels[i]) < fmt.Sprint(levels[j])
	})
	return levels
}

func writeFloatDataframe(path string, rows [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	for _, row := range rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = fmt.Sprintf("%g", v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeIntDataframe(path string, rows [][]int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	defer w.Flush()
	for _, row := range rows {
		record := make([]string, len(row))
		for i, v := range row {
			record[i] = fmt.Sprintf("%d", v)
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}
