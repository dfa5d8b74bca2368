package params

// Clinical defaults for COVID-19. Periods are mean sojourn times in days.
// No magic numbers elsewhere: every default parameter traces back here.
const (
	// IncubationPeriod is the mean time from exposure to infectiousness.
	IncubationPeriod = 3.69

	// InfectiousPeriod is the mean time spent infectious before resolving.
	InfectiousPeriod = 3.47

	// SeverePeriod is the mean hospitalization time before ICU or discharge.
	SeverePeriod = 7.19

	// CriticalPeriod is the ICU stay, net of the severe period.
	CriticalPeriod = 17.50 - SeverePeriod

	// AsymptomaticInfectiousness is the relative infectiousness of
	// asymptomatic carriers.
	AsymptomaticInfectiousness = 0.5

	ProbAsymptomatic = 0.42
	ProbSevere       = 0.18
	ProbCritical     = 0.22
	ProbDeath        = 0.49

	// CaseFatalityRatio is consistent with the branch probabilities above.
	CaseFatalityRatio = ProbSevere * ProbCritical * ProbDeath
)

// Age-structured distributions in 10-year buckets (0-9, ..., 80+).
var (
	ProbAsymptomaticByAge = [NumAgeBuckets]float64{
		0.619231, 0.469595, 0.515000, 0.578082, 0.545763,
		0.476000, 0.483709, 0.497096, 0.582090,
	}

	ProbSevereByAge = [NumAgeBuckets]float64{
		0.000053, 0.000869, 0.020194, 0.059334, 0.077873,
		0.171429, 0.243948, 0.333939, 0.316103,
	}

	ProbCriticalByAge = [NumAgeBuckets]float64{
		0.5, 0.347639, 0.060636, 0.050217, 0.077311,
		0.148810, 0.333795, 0.526186, 0.865129,
	}

	CaseFatalityRatioByAge = [NumAgeBuckets]float64{
		0.000026, 0.000148, 0.000600, 0.001460, 0.002950,
		0.012500, 0.039900, 0.086100, 0.134000,
	}

	InfectionFatalityRatioByAge = [NumAgeBuckets]float64{
		0.000016, 0.000069, 0.000309, 0.000844, 0.001610,
		0.005950, 0.019300, 0.042800, 0.078000,
	}
)
