package calib

// NeonLinesNm lists the neon emission lines used for the coarse
// pixel-to-wavelength calibration, in nm, ascending.
// Source: https://physics.nist.gov/PhysRefData/Handbook/Tables/neontable2.htm
var NeonLinesNm = []float64{
	585.249,
	588.189,
	594.483,
	607.434,
	609.616,
	614.306,
	616.359,
	621.728,
	626.649,
	630.479,
	633.443,
	638.299,
	640.225,
	650.653,
	653.288,
}

// AcetonitrileShiftsCm1 lists the acetonitrile Raman bands used for the fine
// wavenumber calibration, in cm^-1, ascending.
var AcetonitrileShiftsCm1 = []float64{918, 1376, 2249, 2942, 2999}

// Default calibration parameters.
const (
	DefaultExcitationNm        = 532.0
	DefaultFitOrder            = 1
	DefaultCoarseResidualLimit = 1e0
	DefaultFineResidualLimit   = 1e2
)

// RamanShift converts an emission wavelength to a Raman shift in cm^-1
// relative to the excitation wavelength. Both wavelengths are in nm.
func RamanShift(wavelengthNm, excitationNm float64) float64 {
	const nmToCm = 1e7
	return (1/excitationNm - 1/wavelengthNm) * nmToCm
}
