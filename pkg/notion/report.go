package notion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/oncomatch/trial-screener/internal/model"
)

// reportResultLimit caps how many matches one report page lists; Notion
// rejects requests with more than 100 blocks.
const reportResultLimit = 25

// PublishRun creates one page in the report database summarizing a match
// run: the patient query as the title, and a bulleted list of the top
// matches with confidence and explanation.
func PublishRun(ctx context.Context, c Client, reportDB string, run *model.MatchRun) (string, error) {
	if reportDB == "" {
		return "", eris.New("notion: report database not configured")
	}

	title := run.Query.RawText
	if len(title) > 200 {
		title = title[:200]
	}

	blocks := make([]notionapi.Block, 0, min(len(run.Results), reportResultLimit)+1)
	blocks = append(blocks, headingBlock(fmt.Sprintf(
		"%d matches from %d trials scanned", len(run.Results), run.TrialsScanned)))

	for i := range run.Results {
		if i == reportResultLimit {
			break
		}
		blocks = append(blocks, resultBlock(i+1, &run.Results[i]))
	}

	page, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(reportDB),
		},
		Properties: notionapi.Properties{
			"Name": notionapi.TitleProperty{
				Title: []notionapi.RichText{{Text: &notionapi.Text{Content: title}}},
			},
			"Run ID": notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: run.ID}}},
			},
			"Date": notionapi.DateProperty{
				Date: &notionapi.DateObject{Start: dateOf(run.CreatedAt)},
			},
		},
		Children: blocks,
	})
	if err != nil {
		return "", eris.Wrapf(err, "notion: publish run %s", run.ID)
	}
	return string(page.ID), nil
}

func headingBlock(text string) notionapi.Block {
	return &notionapi.Heading2Block{
		BasicBlock: notionapi.BasicBlock{
			Object: notionapi.ObjectTypeBlock,
			Type:   notionapi.BlockTypeHeading2,
		},
		Heading2: notionapi.Heading{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: text}}},
		},
	}
}

func resultBlock(rank int, r *model.MatchResult) notionapi.Block {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s — %s (%.2f%%)", rank, r.Trial.NCTID, r.Trial.Title, r.Confidence)
	if len(r.Explanation) > 0 {
		fmt.Fprintf(&b, ": %s", r.ExplanationText())
	}

	return &notionapi.BulletedListItemBlock{
		BasicBlock: notionapi.BasicBlock{
			Object: notionapi.ObjectTypeBlock,
			Type:   notionapi.BlockTypeBulletedListItem,
		},
		BulletedListItem: notionapi.ListItem{
			RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: b.String()}}},
		},
	}
}

func dateOf(t time.Time) *notionapi.Date {
	d := notionapi.Date(t)
	return &d
}
