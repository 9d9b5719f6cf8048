// Package nutrient derives dosing guidance from pH and EC samples.
// Bands, targets and the reservoir volume are fixed for the rig.
package nutrient

import "fmt"

// Rig constants.
const (
	ReservoirLiters = 20.0

	PHMin = 5.5
	PHMax = 6.5
	ECMin = 800.0  // µS/cm
	ECMax = 1600.0 // µS/cm

	phStep = 0.2  // pH units moved per dose unit
	ecStep = 50.0 // µS/cm moved per dose unit
)

// Status is the band position of a reading.
type Status string

const (
	StatusOK   Status = "ok"
	StatusLow  Status = "low"
	StatusHigh Status = "high"
)

// Channel names a dosed quantity.
type Channel string

const (
	ChannelPH Channel = "ph"
	ChannelEC Channel = "ec"
)

// DoseAdvice is the guidance for one channel.
type DoseAdvice struct {
	Status  Status
	DoseML  float64
	Message string
}

// Advice holds guidance for both channels.
type Advice struct {
	PH DoseAdvice
	EC DoseAdvice
}

// For returns the advice for ch.
func (a Advice) For(ch Channel) DoseAdvice {
	if ch == ChannelEC {
		return a.EC
	}
	return a.PH
}

// reservoirFactor scales a dose unit to the reservoir size.
func reservoirFactor() float64 {
	return ReservoirLiters / 10.0
}

// AdvisePH returns pH guidance. Values on a band edge are ok.
func AdvisePH(ph float64) DoseAdvice {
	target := (PHMin + PHMax) / 2
	switch {
	case ph < PHMin:
		dose := ((target - ph) / phStep) * reservoirFactor()
		return DoseAdvice{
			Status:  StatusLow,
			DoseML:  dose,
			Message: fmt.Sprintf("ALERT: pH is too low! Add %.1fml of Vriddhi (pH Up).", dose),
		}
	case ph > PHMax:
		dose := ((ph - target) / phStep) * reservoirFactor()
		return DoseAdvice{
			Status:  StatusHigh,
			DoseML:  dose,
			Message: fmt.Sprintf("ALERT: pH is too high! Add %.1fml of Saman (pH Down).", dose),
		}
	default:
		return DoseAdvice{Status: StatusOK}
	}
}

// AdviseEC returns EC guidance. High EC is corrected by dilution, so no
// volume is given.
func AdviseEC(ec float64) DoseAdvice {
	target := (ECMin + ECMax) / 2
	switch {
	case ec < ECMin:
		dose := ((target - ec) / ecStep) * reservoirFactor()
		return DoseAdvice{
			Status:  StatusLow,
			DoseML:  dose,
			Message: fmt.Sprintf("ALERT: EC is too low! Add %.1fml each of Jeevan (A) and Shakti (B).", dose),
		}
	case ec > ECMax:
		return DoseAdvice{
			Status:  StatusHigh,
			Message: "ALERT: EC is too high! Dilute with fresh water.",
		}
	default:
		return DoseAdvice{Status: StatusOK}
	}
}

// Advise computes guidance for both channels.
func Advise(ph, ec float64) Advice {
	return Advice{PH: AdvisePH(ph), EC: AdviseEC(ec)}
}
