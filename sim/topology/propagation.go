package topology

import "math"

const (
	speedOfLight = 299792458.0
	// pisterHackShift is the width (dB) of the uniform fading applied below
	// the free-space RSSI, after K. Pister's empirical indoor measurements.
	pisterHackShift = 40.0
)

// rssiPDR maps received signal strength (dBm, integer steps) to packet
// delivery ratio, measured on 802.15.4 hardware. Below the first entry PDR is
// 0, above the last it is 1.
var rssiPDR = []struct {
	rssi float64
	pdr  float64
}{
	{-97, 0.0000},
	{-96, 0.1494},
	{-95, 0.2340},
	{-94, 0.4071},
	{-93, 0.6359},
	{-92, 0.6866},
	{-91, 0.7476},
	{-90, 0.8603},
	{-89, 0.8702},
	{-88, 0.9324},
	{-87, 0.9427},
	{-86, 0.9562},
	{-85, 0.9611},
	{-84, 0.9739},
	{-83, 0.9745},
	{-82, 0.9844},
	{-81, 0.9854},
	{-80, 0.9903},
	{-79, 1.0000},
}

// FreeSpaceRSSI returns the received power (dBm) at distanceKm under the
// Friis free-space model with isotropic antennas.
func FreeSpaceRSSI(distanceKm, frequencyGHz, txPowerDBm float64) float64 {
	d := distanceKm * 1000
	if d <= 0 {
		return txPowerDBm
	}
	wavelength := speedOfLight / (frequencyGHz * 1e9)
	fspl := 20 * math.Log10(4*math.Pi*d/wavelength)
	return txPowerDBm - fspl
}

// PisterHackRSSI draws a faded RSSI uniformly in [fs-40, fs] dB from the free
// space value fs, using u in [0, 1).
func PisterHackRSSI(freeSpace, u float64) float64 {
	return freeSpace - pisterHackShift*u
}

// RSSIToPDR converts a signal strength to a delivery ratio by linear
// interpolation between the two surrounding table entries.
func RSSIToPDR(rssi float64) float64 {
	first, last := rssiPDR[0], rssiPDR[len(rssiPDR)-1]
	if rssi <= first.rssi {
		return first.pdr
	}
	if rssi >= last.rssi {
		return last.pdr
	}
	lo := int(math.Floor(rssi - first.rssi))
	hi := lo + 1
	frac := rssi - rssiPDR[lo].rssi
	return rssiPDR[lo].pdr + frac*(rssiPDR[hi].pdr-rssiPDR[lo].pdr)
}
