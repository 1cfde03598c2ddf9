package rhl

import "log"

//HandleError interrupts the program when err is not nil.
func HandleError(err error) {
	if err != nil {
		log.Panic(err)
	}
}

func panicf(format string, args ...interface{}) {
	log.Panicf(format, args...)
}
