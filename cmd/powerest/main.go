package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ja7ad/powerest/pkg/design"
	"github.com/ja7ad/powerest/pkg/diag"
	"github.com/ja7ad/powerest/pkg/power"
	"github.com/ja7ad/powerest/pkg/types"
	"github.com/ja7ad/powerest/pkg/util"
)

type opts struct {
	descriptor string
	design     string

	// specification
	ambientTyp   float64
	ambientWorst float64
	thetaJA      float64
	budget       float64
	maxJunction  float64

	// outputs
	csvPath  string
	jsonPath string
	htmlPath string
	pretty   bool
	verbose  bool
}

// row is one resource instance in the report.
type row struct {
	Submodule     string  `json:"submodule"`
	Name          string  `json:"name"`
	BlockW        float64 `json:"block_w"`
	InterconnectW float64 `json:"interconnect_w"`
	Percentage    float64 `json:"percentage"`
	Messages      string  `json:"messages,omitempty"`
}

type report struct {
	Device        string              `json:"device"`
	Design        string              `json:"design,omitempty"`
	Specification power.Specification `json:"specification"`
	Output        power.DeviceOutput  `json:"output"`
	Rows          []row               `json:"rows"`
}

func main() {
	var o opts

	root := &cobra.Command{
		Use:   "powerest --descriptor device.yaml [--design design.yaml]",
		Short: "FPGA power estimation tool",
		Long: `The powerest tool estimates the dynamic and static power of an FPGA
design. It loads a device descriptor with its coefficient document, applies a
design (clocks, fabric logic, DSP, block RAM, IO and SoC peripherals) and
reports typical and worst-case power with junction temperature.

Examples:
  powerest --descriptor testdata/gemini/device.yaml --design testdata/gemini/design.yaml
  powerest -d device.yaml --design design.yaml --theta-ja 6 --budget 2.5 --json out.json --html out.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), cmd.Flags(), o)
		},
		SilenceUsage: true,
	}

	root.Flags().StringVarP(&o.descriptor, "descriptor", "d", "", "device descriptor YAML (required)")
	root.Flags().StringVar(&o.design, "design", "", "design YAML to apply")
	root.Flags().AddFlagSet(specFlags(&o))
	root.Flags().StringVar(&o.csvPath, "csv", "", "write per-instance rows to CSV file")
	root.Flags().StringVar(&o.jsonPath, "json", "", "write the full report to JSON file")
	root.Flags().StringVar(&o.htmlPath, "html", "", "write the report to HTML file")
	root.Flags().BoolVar(&o.pretty, "pretty", true, "format output as a table instead of CSV-like lines")
	root.Flags().BoolVarP(&o.verbose, "verbose", "v", false, "log recompute details")
	_ = root.MarkFlagRequired("descriptor")

	if err := root.Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// specFlags holds the flags that override the design's specification. Only
// flags set on the command line take effect.
func specFlags(o *opts) *pflag.FlagSet {
	def := power.DefaultSpecification()
	fs := pflag.NewFlagSet("specification", pflag.ContinueOnError)
	fs.Float64Var(&o.ambientTyp, "ambient-typ", float64(def.AmbientTypical), "typical ambient temperature (°C)")
	fs.Float64Var(&o.ambientWorst, "ambient-worst", float64(def.AmbientWorst), "worst-case ambient temperature (°C)")
	fs.Float64Var(&o.thetaJA, "theta-ja", def.ThetaJA, "junction-to-ambient thermal resistance (°C/W)")
	fs.Float64Var(&o.budget, "budget", def.PowerBudget, "power budget in Watts (0 = none)")
	fs.Float64Var(&o.maxJunction, "max-junction", float64(def.MaxJunction), "maximum junction temperature (°C)")
	return fs
}

func applySpecFlags(flags *pflag.FlagSet, o opts, s power.Specification) power.Specification {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "ambient-typ":
			s.AmbientTypical = types.Celsius(o.ambientTyp)
		case "ambient-worst":
			s.AmbientWorst = types.Celsius(o.ambientWorst)
		case "theta-ja":
			s.ThetaJA = o.thetaJA
		case "budget":
			s.PowerBudget = o.budget
		case "max-junction":
			s.MaxJunction = types.Celsius(o.maxJunction)
		}
	})
	return s
}

func run(w io.Writer, flags *pflag.FlagSet, o opts) error {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	m := power.NewManager(power.WithLogger(logger))
	_, dev, err := m.Open(o.descriptor)
	if err != nil {
		return err
	}

	rep := report{Device: dev.Name()}
	if o.design != "" {
		d, err := design.Load(o.design)
		if err != nil {
			return err
		}
		if err := d.Apply(dev); err != nil {
			return err
		}
		rep.Design = d.Name
	}

	if err := dev.SetSpecification(applySpecFlags(flags, o, dev.Specification())); err != nil {
		return err
	}
	if err := dev.Recompute(); err != nil {
		return err
	}

	rep.Specification = dev.Specification()
	rep.Output = dev.Output()
	dev.View(func(d *power.Device) { rep.Rows = collectRows(d) })

	fmt.Fprintf(w, _console, rep.Device, rep.Design)
	if o.pretty {
		printTables(w, rep)
	} else {
		printCsvLike(w, rep)
	}

	if o.csvPath != "" {
		if err := writeFile(o.csvPath, func(f io.Writer) error { return writeCSV(f, rep.Rows) }); err != nil {
			slog.Error("write csv", "err", err)
		}
	}
	if o.jsonPath != "" {
		if err := writeFile(o.jsonPath, func(f io.Writer) error { return writeJSON(f, rep) }); err != nil {
			slog.Error("write json", "err", err)
		}
	}
	if o.htmlPath != "" {
		if err := writeFile(o.htmlPath, func(f io.Writer) error { return writeHTML(f, rep) }); err != nil {
			slog.Error("write html", "err", err)
		}
	}
	return nil
}

func collectRows(d *power.Device) []row {
	var rows []row
	add := func(sub, name string, block, inter, pct float64, msgs []diag.Message) {
		texts := make([]string, len(msgs))
		for i, m := range msgs {
			texts[i] = m.String()
		}
		rows = append(rows, row{sub, name, block, inter, pct, strings.Join(texts, "; ")})
	}
	for _, c := range d.Clocks().List() {
		add("clock", c.Port, c.Output.BlockPower, c.Output.InterconnectPower, c.Output.Percentage, c.Output.Messages)
	}
	for _, c := range d.FabricLE().List() {
		add("fabric_le", c.Name, c.Output.BlockPower, c.Output.InterconnectPower, c.Output.Percentage, c.Output.Messages)
	}
	for _, c := range d.DSP().List() {
		add("dsp", c.Name, c.Output.BlockPower, c.Output.InterconnectPower, c.Output.Percentage, c.Output.Messages)
	}
	for _, c := range d.BRAM().List() {
		add("bram", c.Name, c.Output.BlockPower, c.Output.InterconnectPower, c.Output.Percentage, c.Output.Messages)
	}
	for _, c := range d.IO().List() {
		add("io", c.Name, c.Output.BlockPower, c.Output.InterconnectPower, c.Output.Percentage, c.Output.Messages)
	}
	for _, c := range d.Peripherals().List() {
		add("peripheral", c.Name, c.Output.BlockPower, 0, c.Output.Percentage, c.Output.Messages)
	}
	return rows
}

func printTables(w io.Writer, rep report) {
	inst := table.NewWriter()
	inst.SetOutputMirror(w)
	inst.SetTitle("Resources")
	inst.AppendHeader(table.Row{"Submodule", "Name", "Block", "Interconnect", "Share", "Messages"})
	for _, r := range rep.Rows {
		inst.AppendRow(table.Row{r.Submodule, r.Name,
			types.Watts(r.BlockW).Humanized(), types.Watts(r.InterconnectW).Humanized(),
			fmt.Sprintf("%.1f%%", r.Percentage), r.Messages})
	}
	inst.SetStyle(table.StyleLight)
	inst.Render()

	dyn := table.NewWriter()
	dyn.SetOutputMirror(w)
	dyn.SetTitle("Dynamic power")
	dyn.AppendHeader(table.Row{"Submodule", "Power", "Share"})
	for _, s := range rep.Output.Dynamic {
		dyn.AppendRow(table.Row{s.Name, types.Watts(s.Power).Humanized(), fmt.Sprintf("%.1f%%", s.Percentage)})
	}
	dyn.SetStyle(table.StyleLight)
	dyn.Render()

	sum := table.NewWriter()
	sum.SetOutputMirror(w)
	sum.SetTitle("Summary")
	sum.AppendHeader(table.Row{"Scenario", "Ambient", "Dynamic", "Static", "Total", "Junction"})
	for _, sc := range []struct {
		name string
		p    power.ScenarioPower
	}{{"typical", rep.Output.Typical}, {"worst", rep.Output.Worst}} {
		sum.AppendRow(table.Row{sc.name, sc.p.Ambient.Humanized(),
			types.Watts(sc.p.Dynamic).Humanized(), types.Watts(sc.p.Static).Humanized(),
			types.Watts(sc.p.Total).Humanized(), sc.p.Junction.Humanized()})
	}
	sum.SetStyle(table.StyleLight)
	sum.Render()

	for _, m := range rep.Output.Messages {
		fmt.Fprintf(w, "! %s\n", m)
	}
}

func printCsvLike(w io.Writer, rep report) {
	fmt.Fprintln(w, "# submodule, name, block(W), interconnect(W), share(%)")
	for _, r := range rep.Rows {
		fmt.Fprintf(w, "%s, %s, %.6f, %.6f, %.2f\n", r.Submodule, r.Name, r.BlockW, r.InterconnectW, r.Percentage)
	}
	fmt.Fprintf(w, "# typical total %.6f W, worst total %.6f W, worst junction %.1f\n",
		rep.Output.Typical.Total, rep.Output.Worst.Total, rep.Output.Worst.Junction.Float())
}

func writeFile(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeCSV(w io.Writer, rows []row) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"submodule", "name", "block_w", "interconnect_w", "percentage", "messages"})
	for _, r := range rows {
		_ = cw.Write([]string{
			r.Submodule, r.Name,
			util.FmtFloat(r.BlockW), util.FmtFloat(r.InterconnectW), util.FmtFloat(r.Percentage),
			r.Messages,
		})
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, rep report) error {
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

func writeHTML(w io.Writer, rep report) error {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, rep); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

var tpl = template.Must(template.New("rep").Funcs(template.FuncMap{
	"watts": func(v float64) string { return types.Watts(v).Humanized() },
}).Parse(`<!doctype html>
<html lang="en"><meta charset="utf-8">
<title>Power Report - {{.Device}}</title>
<style>
body{font-family:system-ui,Segoe UI,Roboto,Helvetica,Arial,sans-serif;margin:20px}
h1,h2{margin:0 0 8px}
table{border-collapse:collapse;width:100%;font-size:14px;margin-bottom:16px}
th,td{border:1px solid #ddd;padding:6px 8px;text-align:right}
th:first-child,td:first-child,td.l{text-align:left}
.small{color:#555}
.warn{color:#a40}
</style>

<h1>Power Report</h1>
<p class="small">
Device: {{.Device}}{{if .Design}} &nbsp;|&nbsp; Design: {{.Design}}{{end}} &nbsp;|&nbsp;
θJA: {{printf "%.2f" .Specification.ThetaJA}} °C/W
</p>

<h2>Summary</h2>
<table>
<thead><tr><th>scenario</th><th>ambient</th><th>dynamic</th><th>static</th><th>total</th><th>junction</th></tr></thead>
<tbody>
<tr><td>typical</td><td>{{.Output.Typical.Ambient.Humanized}}</td><td>{{watts .Output.Typical.Dynamic}}</td><td>{{watts .Output.Typical.Static}}</td><td>{{watts .Output.Typical.Total}}</td><td>{{.Output.Typical.Junction.Humanized}}</td></tr>
<tr><td>worst</td><td>{{.Output.Worst.Ambient.Humanized}}</td><td>{{watts .Output.Worst.Dynamic}}</td><td>{{watts .Output.Worst.Static}}</td><td>{{watts .Output.Worst.Total}}</td><td>{{.Output.Worst.Junction.Humanized}}</td></tr>
</tbody>
</table>
{{range .Output.Messages}}<p class="warn">{{.}}</p>{{end}}

<h2>Dynamic power</h2>
<table>
<thead><tr><th>submodule</th><th>power</th><th>share</th></tr></thead>
<tbody>
{{range .Output.Dynamic}}<tr><td>{{.Name}}</td><td>{{watts .Power}}</td><td>{{printf "%.1f" .Percentage}}%</td></tr>
{{end}}
</tbody>
</table>

<h2>Resources</h2>
<table>
<thead><tr><th>submodule</th><th>name</th><th>block</th><th>interconnect</th><th>share</th><th>messages</th></tr></thead>
<tbody>
{{range .Rows}}<tr><td>{{.Submodule}}</td><td class="l">{{.Name}}</td><td>{{watts .BlockW}}</td><td>{{watts .InterconnectW}}</td><td>{{printf "%.1f" .Percentage}}%</td><td class="l">{{.Messages}}</td></tr>
{{end}}
</tbody>
</table>
</html>`))

const _console = `Powerest - FPGA Power Estimation Tool

       Device: %s
       Design: %s

`
