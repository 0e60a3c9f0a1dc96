package ai

// KhataExtractionPrompt is the fixed instruction sent with every mark-sheet extraction.
func KhataExtractionPrompt() string {
	return `You are reading photographs of a handwritten Bangladeshi school mark sheet (khata).
The pages may contain Bengali (০-৯) or Arabic (0-9) digits and Bengali or English names.

For EVERY student row you can see, report:
- rollNumber: the roll number exactly as written (keep Bengali digits if written that way)
- name: the student's name as written
- totalMarks: the total marks for the row exactly as written

Rules:
- Read all pages in order; do not repeat a row that appears on two photos.
- Never invent rows. Leave a field as an empty string if it cannot be read.
- If part of a page is unreadable, add a short sentence to "warnings".

Return ONLY this JSON object, no explanation:
{"extractedMarks":[{"rollNumber":"","name":"","totalMarks":""}],"warnings":[]}`
}
