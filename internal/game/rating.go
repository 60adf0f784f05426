package game

// Rating scores a successful drawing from 1 to 5 stars. Failed sessions
// score 0.
func Rating(success bool, confidence, seconds float64) int {
	if !success {
		return 0
	}
	var conf int
	switch {
	case confidence >= 0.95:
		conf = 3
	case confidence >= 0.85:
		conf = 2
	case confidence >= 0.75:
		conf = 1
	}
	var speed int
	switch {
	case seconds <= 10:
		speed = 2
	case seconds <= 20:
		speed = 1
	}
	return max(1, conf+speed)
}
