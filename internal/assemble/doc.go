// Package assemble turns a finished static-site build into a deployment manifest.
//
// The pipeline is classification → route table → four artifact sets → ordered merge:
//
//	Classify        partitions the page registry into SSR and DSG buckets
//	StaticBuilder   one file artifact per file in the static output tree
//	BuildDynamic    one shared function for every SSR and DSG path
//	APIBuilder      one function per handler file under src/api
//	BuildReserved   the page-data function, always present
//	Merge           static, dynamic, api, reserved; later sets win key collisions
//
// Assembler runs the whole sequence; each step is also usable on its own.
package assemble
