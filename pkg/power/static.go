package power

import (
	"fmt"

	"github.com/ja7ad/powerest/pkg/coeff"
	"github.com/ja7ad/powerest/pkg/resources"
	"github.com/ja7ad/powerest/pkg/types"
)

// RailPower is the static power of one rail of one static category.
type RailPower struct {
	Category coeff.Category `json:"category"`
	Rail     string         `json:"rail"`
	Count    float64        `json:"count"`
	Power    float64        `json:"power"`
}

// staticTerm ties a static category to the resource count its polynomials
// are multiplied by.
type staticTerm struct {
	cat   coeff.Category
	count func(d *Device) float64
}

func once(*Device) float64 { return 1 }

func clbs(d *Device) float64 { return float64(d.res.CLBs) }
func brams36K(d *Device) float64 { return float64(d.res.BRAM36K) }
func dsps(d *Device) float64 { return float64(d.res.DSPs) }

func banksAt(bank resources.BankType, vcco float64) func(*Device) float64 {
	return func(d *Device) float64 { return float64(d.io.BanksUsed(bank, vcco)) }
}

var staticTerms = []staticTerm{
	{"noc", once},
	{"mem_ss", once},
	{"acpu", once},
	{"config", once},
	{"clb", clbs},
	{"bram", brams36K},
	{"dsp", dsps},
	{"gearbox_hp", banksAt(resources.HP, 0)},
	{"gearbox_hr", banksAt(resources.HR, 0)},
	{"hp_io_1_2v", banksAt(resources.HP, 1.2)},
	{"hp_io_1_5v", banksAt(resources.HP, 1.5)},
	{"hp_io_1_8v", banksAt(resources.HP, 1.8)},
	{"hr_io_1_8v", banksAt(resources.HR, 1.8)},
	{"hr_io_2_5v", banksAt(resources.HR, 2.5)},
	{"hr_io_3_3v", banksAt(resources.HR, 3.3)},
	{"aux", once},
	{"boot_io", once},
	{"soc_io", once},
	{"gige_io", once},
	{"usb_io", once},
	{"ddr_io", once},
	{"boot_aux", once},
	{"soc_aux", once},
	{"gige_aux", once},
	{"usb_aux", once},
	{"rc_osc", once},
	{"puf", once},
}

// StaticCategories lists the static categories a coefficient document must
// declare, in evaluation order.
func StaticCategories() []coeff.Category {
	out := make([]coeff.Category, len(staticTerms))
	for i, t := range staticTerms {
		out[i] = t.cat
	}
	return out
}

// staticPower evaluates every rail of every static category at temperature t
// with the coefficient set of scenario sc.
func (d *Device) staticPower(sc coeff.Scenario, t types.Celsius) ([]RailPower, float64, error) {
	var (
		rails []RailPower
		total float64
	)
	for _, term := range staticTerms {
		specs, err := d.coeffs.Polynomials(term.cat, sc)
		if err != nil {
			return nil, 0, fmt.Errorf("static: %w", err)
		}
		n := term.count(d)
		for _, spec := range specs {
			p := spec.Eval(t.Float()) * n
			rails = append(rails, RailPower{Category: term.cat, Rail: spec.Rail, Count: n, Power: p})
			total += p
		}
	}
	return rails, total, nil
}
