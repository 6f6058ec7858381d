package llm

import "strings"

const systemPrompt = "You are an expert at analyzing educational video transcripts and identifying logical topic segments. Respond with a single JSON object only."

const userPromptTemplate = `Given a video transcript with timestamps in [MM:SS] or [HH:MM:SS] format, identify distinct segments where the topic or concept changes.
Each segment should represent a coherent section of the video covering a specific subtopic.

VIDEO ID: {{video_id}}
TRANSCRIPT (timestamps shown as [MM:SS] or [HH:MM:SS]):
{{transcript}}

INSTRUCTIONS:
1. Identify all logical segments (topics/sections) in the video.
2. Each segment must have start and end times based on topic transitions.
3. Return start_time and end_time in SECONDS, not minutes or hours.
   Examples: [02:30] = 150 seconds, [01:30:45] = 5445 seconds.
4. Give every segment a clear title.
5. Write a brief 2-3 sentence summary.
6. List the key topics and concepts covered.
7. Estimate the difficulty level: easy, medium or hard.
8. Determine the overall topic of the entire video.

OUTPUT FORMAT:
{"video_id":"...","total_segments":0,"overall_topic":"...","segments":[{"title":"...","start_time":0.0,"end_time":0.0,"summary":"...","key_topics":["..."],"difficulty_level":"medium"}]}`

func buildUserPrompt(identifier, window string) string {
	r := strings.NewReplacer("{{video_id}}", identifier, "{{transcript}}", window)
	return r.Replace(userPromptTemplate)
}
