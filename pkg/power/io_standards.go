package power

import (
	"fmt"
	"slices"

	"github.com/ja7ad/powerest/pkg/resources"
)

// IOStandard is the electrical standard of an IO.
type IOStandard string

const (
	LVCMOS12V     IOStandard = "LVCMOS_1_2V"
	LVCMOS15V     IOStandard = "LVCMOS_1_5V"
	LVCMOS18VHP   IOStandard = "LVCMOS_1_8V_HP"
	LVCMOS18VHR   IOStandard = "LVCMOS_1_8V_HR"
	LVCMOS25V     IOStandard = "LVCMOS_2_5V"
	LVCMOS33V     IOStandard = "LVCMOS_3_3V"
	LVTTL         IOStandard = "LVTTL"
	SSTL15VHP     IOStandard = "SSTL_1_5V_HP"
	SSTL18VHR     IOStandard = "SSTL_1_8V_HR"
	HSTL12V       IOStandard = "HSTL_1_2V"
	HSTL18VHR     IOStandard = "HSTL_1_8V_HR"
	LVDSHP        IOStandard = "LVDS_HP"
	LVDSHR        IOStandard = "LVDS_HR"
	SLVSHP        IOStandard = "SLVS_HP"
	DiffHSTL18VHR IOStandard = "DIFF_HSTL_1_8V_HR"
)

// StandardInfo describes where a standard lives and how it is powered.
type StandardInfo struct {
	Bank         resources.BankType
	VCCO         float64
	Differential bool
}

var ioStandards = map[IOStandard]StandardInfo{
	LVCMOS12V:     {resources.HP, 1.2, false},
	LVCMOS15V:     {resources.HP, 1.5, false},
	LVCMOS18VHP:   {resources.HP, 1.8, false},
	LVCMOS18VHR:   {resources.HR, 1.8, false},
	LVCMOS25V:     {resources.HR, 2.5, false},
	LVCMOS33V:     {resources.HR, 3.3, false},
	LVTTL:         {resources.HR, 3.3, false},
	SSTL15VHP:     {resources.HP, 1.5, false},
	SSTL18VHR:     {resources.HR, 1.8, false},
	HSTL12V:       {resources.HP, 1.2, false},
	HSTL18VHR:     {resources.HR, 1.8, false},
	LVDSHP:        {resources.HP, 1.8, true},
	LVDSHR:        {resources.HR, 2.5, true},
	SLVSHP:        {resources.HP, 1.2, true},
	DiffHSTL18VHR: {resources.HR, 1.8, true},
}

// Info returns the standard's bank, VCCO and signalling.
func (s IOStandard) Info() (StandardInfo, bool) {
	info, ok := ioStandards[s]
	return info, ok
}

// Standards lists the supported IO standards, sorted.
func Standards() []IOStandard {
	out := make([]IOStandard, 0, len(ioStandards))
	for s := range ioStandards {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// BankVoltage identifies banks of one type running at one VCCO.
type BankVoltage struct {
	Bank resources.BankType
	VCCO float64
}

func (b BankVoltage) String() string {
	return fmt.Sprintf("%s@%.1fV", b.Bank, b.VCCO)
}
