// Package autoscale sizes the processor fleet: it resumes or launches
// instances when queue pressure outruns capacity, and stops or terminates
// instances that have sat idle.
package autoscale
